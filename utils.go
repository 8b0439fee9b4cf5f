package faucet

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
)

var weiPerEther = big.NewInt(params.Ether)

// FormatEther renders a wei amount as a decimal string in whole-currency
// units, with trailing zeros trimmed ("5000000000000000" -> "0.005").
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	sign := ""
	abs := new(big.Int).Abs(wei)
	if wei.Sign() < 0 {
		sign = "-"
	}

	quo, rem := new(big.Int).QuoRem(abs, weiPerEther, new(big.Int))
	if rem.Sign() == 0 {
		return sign + quo.String()
	}

	frac := strings.TrimRight(fmt.Sprintf("%018s", rem.String()), "0")
	return sign + quo.String() + "." + frac
}

// FormatWei is FormatEther for amounts that fit an int64, which covers every
// per-claim and per-day quantity in the system.
func FormatWei(wei int64) string {
	return FormatEther(big.NewInt(wei))
}

// ParseEther parses a decimal string in whole-currency units into wei.
// At most 18 fractional digits are accepted.
func ParseEther(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}

	// The sign must be rejected up front: "-0.5" splits into whole "-0",
	// which parses to zero and would silently lose the sign.
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return nil, fmt.Errorf("invalid amount %q", s)
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 18 {
		return nil, fmt.Errorf("amount has more than 18 decimal places")
	}

	wholeInt, ok := new(big.Int).SetString(whole, 10)
	if !ok || wholeInt.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}

	wei := new(big.Int).Mul(wholeInt, weiPerEther)

	if frac != "" {
		fracInt, ok := new(big.Int).SetString(frac+strings.Repeat("0", 18-len(frac)), 10)
		if !ok {
			return nil, fmt.Errorf("invalid amount %q", s)
		}
		wei.Add(wei, fracInt)
	}

	return wei, nil
}

// IsHexAddress reports whether s is a well-formed 20-byte hex address.
func IsHexAddress(s string) bool {
	return common.IsHexAddress(s)
}
