package faucet

import (
	"math/big"
	"testing"
)

func TestFormatEther(t *testing.T) {
	cases := []struct {
		wei  string
		want string
	}{
		{"0", "0"},
		{"5000000000000000", "0.005"},
		{"10000000000000000", "0.01"},
		{"15000000000000000", "0.015"},
		{"1000000000000000000", "1"},
		{"1500000000000000000", "1.5"},
		{"1", "0.000000000000000001"},
	}

	for _, c := range cases {
		wei, _ := new(big.Int).SetString(c.wei, 10)
		if got := FormatEther(wei); got != c.want {
			t.Errorf("FormatEther(%s) = %s, want %s", c.wei, got, c.want)
		}
	}
}

func TestParseEther(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0.005", "5000000000000000"},
		{"0.01", "10000000000000000"},
		{"1", "1000000000000000000"},
		{"1.5", "1500000000000000000"},
		{".5", "500000000000000000"},
	}

	for _, c := range cases {
		got, err := ParseEther(c.in)
		if err != nil {
			t.Fatalf("ParseEther(%q) failed: %v", c.in, err)
		}
		if got.String() != c.want {
			t.Errorf("ParseEther(%q) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestParseEtherRejectsBadInput(t *testing.T) {
	for _, in := range []string{"", "abc", "-1", "-0.5", "-0.005", "+1", "0.0000000000000000001", "1.2.3"} {
		if _, err := ParseEther(in); err == nil {
			t.Errorf("ParseEther(%q) should fail", in)
		}
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, s := range []string{"0.005", "0.02", "12.345"} {
		wei, err := ParseEther(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		if got := FormatEther(wei); got != s {
			t.Errorf("round trip %q -> %q", s, got)
		}
	}
}
