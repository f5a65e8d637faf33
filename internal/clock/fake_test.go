package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)

func TestFakeNow(t *testing.T) {
	c := NewFake(epoch)
	if !c.Now().Equal(epoch) {
		t.Errorf("Now = %v, want %v", c.Now(), epoch)
	}
	c.Advance(90 * time.Second)
	if want := epoch.Add(90 * time.Second); !c.Now().Equal(want) {
		t.Errorf("Now = %v, want %v", c.Now(), want)
	}
	c.Set(epoch)
	if !c.Now().Equal(epoch) {
		t.Errorf("after Set, Now = %v", c.Now())
	}
}

func TestFakeTicker(t *testing.T) {
	c := NewFake(epoch)
	tk := c.NewTicker(time.Minute)
	defer tk.Stop()

	c.Advance(30 * time.Second)
	select {
	case <-tk.C:
		t.Fatal("ticked before interval elapsed")
	default:
	}

	c.Advance(30 * time.Second)
	select {
	case got := <-tk.C:
		if want := epoch.Add(time.Minute); !got.Equal(want) {
			t.Errorf("tick = %v, want %v", got, want)
		}
	default:
		t.Fatal("no tick after interval")
	}

	// Several intervals at once deliver one tick; the rest are dropped.
	c.Advance(5 * time.Minute)
	<-tk.C
	select {
	case <-tk.C:
		t.Error("buffered more than one tick")
	default:
	}
}

func TestFakeTickerStop(t *testing.T) {
	c := NewFake(epoch)
	tk := c.NewTicker(time.Minute)
	tk.Stop()
	c.Advance(time.Hour)
	select {
	case <-tk.C:
		t.Error("stopped ticker fired")
	default:
	}
}

func TestRealNow(t *testing.T) {
	before := time.Now()
	got := Real().Now()
	if got.Before(before) {
		t.Errorf("Real().Now() = %v, before %v", got, before)
	}
}
