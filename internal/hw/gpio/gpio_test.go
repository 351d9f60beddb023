package gpio

import "testing"

func TestMockDriver_WriteThenRead(t *testing.T) {
	drv := NewMockDriver()
	if err := drv.WritePin(4, High); err != nil {
		t.Fatalf("WritePin: %v", err)
	}
	got, err := drv.ReadPin(4)
	if err != nil {
		t.Fatalf("ReadPin: %v", err)
	}
	if got != High {
		t.Errorf("ReadPin = %v, want High", got)
	}
}

func TestMockDriver_PullUpReadsHigh(t *testing.T) {
	drv := NewMockDriver()
	_ = drv.SetPull(21, PullUp)
	if got, _ := drv.ReadPin(21); got != High {
		t.Errorf("pulled-up pin reads %v, want High", got)
	}
}

func TestMockDriver_PressLatchesOnlyWhenArmed(t *testing.T) {
	drv := NewMockDriver()

	drv.Press(21)
	if hit, _ := drv.EdgeDetected(21); hit {
		t.Error("edge latched without detection armed")
	}

	_ = drv.DetectEdge(21, FallEdge)
	drv.Press(21)
	if hit, _ := drv.EdgeDetected(21); !hit {
		t.Error("expected edge after press with detection armed")
	}
	if hit, _ := drv.EdgeDetected(21); hit {
		t.Error("EdgeDetected should clear the latch")
	}
}

func TestMockDriver_DisarmClearsLatch(t *testing.T) {
	drv := NewMockDriver()
	_ = drv.DetectEdge(21, FallEdge)
	drv.Press(21)
	_ = drv.DetectEdge(21, NoEdge)

	if hit, _ := drv.EdgeDetected(21); hit {
		t.Error("disarming should clear a pending edge")
	}
	if drv.Armed(21) != NoEdge {
		t.Errorf("Armed = %v, want NoEdge", drv.Armed(21))
	}
}

func TestNewDriver_Mock(t *testing.T) {
	drv, err := NewDriver(true)
	if err != nil {
		t.Fatalf("NewDriver(true): %v", err)
	}
	if _, ok := drv.(*MockDriver); !ok {
		t.Errorf("NewDriver(true) = %T, want *MockDriver", drv)
	}
	if err := drv.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
