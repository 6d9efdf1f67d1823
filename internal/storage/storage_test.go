package storage

import (
	"errors"
	"testing"

	"spool/internal/services"
)

func TestOptionsValidate(t *testing.T) {
	valid := Options{Region: "us-east-1", AccessKey: "ak", SecretKey: "sk"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid options, got %v", err)
	}

	cases := []Options{
		{Region: "us-east-1", SecretKey: "sk"},
		{Region: "us-east-1", AccessKey: "ak"},
		{AccessKey: "ak", SecretKey: "sk"},
	}
	for _, opts := range cases {
		err := opts.Validate()
		if err == nil {
			t.Fatalf("expected error for %+v", opts)
		}
		if !errors.Is(err, services.ErrConfiguration) {
			t.Fatalf("expected configuration marker, got %v", err)
		}
	}
}
