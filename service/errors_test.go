package service

import (
	"context"
	"fmt"
	"net/url"
	"testing"
)

func TestPermanent(t *testing.T) {
	err := fmt.Errorf("permanent error")
	if Temporary(err) {
		t.Fail()
	}
	err = &url.Error{Err: err}
	if Temporary(err) {
		t.Fail()
	}
}

func TestTemporary(t *testing.T) {
	err := MakeTemporary(fmt.Errorf("temporary error"))
	if !Temporary(err) {
		t.Fail()
	}
	err = fmt.Errorf("wrap: %w", err)
	if !Temporary(err) {
		t.Fail()
	}
	if !Temporary(context.Canceled) {
		t.Fail()
	}
	if !Temporary(context.DeadlineExceeded) {
		t.Fail()
	}
	err = fmt.Errorf("wrap: %w", &url.Error{Err: err})
	if !Temporary(err) {
		t.Fail()
	}
}

func TestFatal(t *testing.T) {
	err := fmt.Errorf("scene error")
	if Fatal(err) {
		t.Fail()
	}
	err = fmt.Errorf("wrap: %w", MakeFatal(err))
	if !Fatal(err) {
		t.Fail()
	}
	if Temporary(err) {
		t.Fail()
	}
}

func TestMergeErrors(t *testing.T) {
	err1 := fmt.Errorf("first")
	err2 := MakeTemporary(fmt.Errorf("second"))

	if err := MergeErrors(false, err1, nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if err := MergeErrors(false, err1, err2); err == nil || !Temporary(err) {
		t.Errorf("expected temporary error, got %v", err)
	}
	if err := MergeErrors(true, nil, err1); err != err1 {
		t.Errorf("expected first error, got %v", err)
	}
}
