package xdm_test

import (
	"errors"
	"testing"

	"github.com/midbel/xpc/xdm"
)

func TestComparer(t *testing.T) {
	tests := []struct {
		Collation string
		Left      xdm.Atomic
		Right     xdm.Atomic
		Equal     bool
		Err       error
	}{
		{Left: xdm.String("abc"), Right: xdm.Untyped("abc"), Equal: true},
		{Left: xdm.String("abc"), Right: xdm.String("ABC"), Equal: false},
		{Left: xdm.Integer(1), Right: xdm.Double(1), Equal: true},
		{Left: xdm.Decimal(1.5), Right: xdm.Double(1.5), Equal: true},
		{Left: xdm.NaN(), Right: xdm.NaN(), Equal: false},
		{Left: xdm.Boolean(true), Right: xdm.Boolean(true), Equal: true},
		{Left: xdm.String("1"), Right: xdm.Integer(1), Err: xdm.ErrNotComparable},
		{
			Collation: xdm.HtmlAsciiCollation,
			Left:      xdm.String("abc"),
			Right:     xdm.String("ABC"),
			Equal:     true,
		},
		{
			Collation: xdm.UcaCollation + "?lang=en&strength=secondary",
			Left:      xdm.String("abc"),
			Right:     xdm.String("ABC"),
			Equal:     true,
		},
		{
			Collation: xdm.UcaCollation + "?lang=fr&strength=primary",
			Left:      xdm.String("été"),
			Right:     xdm.String("ete"),
			Equal:     true,
		},
	}
	for i, tt := range tests {
		cmp, err := xdm.NewComparer(tt.Collation)
		if err != nil {
			t.Errorf("test #%d: fail to create comparer: %s", i, err)
			continue
		}
		got, err := cmp.Equal(tt.Left, tt.Right)
		if tt.Err != nil {
			if !errors.Is(err, tt.Err) {
				t.Errorf("test #%d: expected error %v, got %v", i, tt.Err, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("test #%d: unexpected error: %s", i, err)
			continue
		}
		if got != tt.Equal {
			t.Errorf("test #%d: %s = %s: want %t, got %t", i, tt.Left, tt.Right, tt.Equal, got)
		}
	}
}

func TestUnsupportedCollation(t *testing.T) {
	_, err := xdm.NewComparer("urn:no-such-collation")
	if code := xdm.Code(err); code != xdm.CodeCollation {
		t.Errorf("expected %s, got %v", xdm.CodeCollation, err)
	}
}
