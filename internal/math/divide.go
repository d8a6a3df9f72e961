package math

import (
	"fmt"
	"math/big"

	"StableLedger/internal/fault"
)

// VerifiedDivide performs floor division and validates the quotient/remainder
// witness before returning. Every division in the core funnels through here:
// the witness check (remainder < divisor, quotient*divisor+remainder ==
// dividend) is the single arithmetic invariant the rest of the system leans
// on, and doubles as the oracle for property tests.
func VerifiedDivide(dividend, divisor int64) (int64, error) {
	if divisor <= 0 {
		return 0, divisorErr(divisor)
	}
	if dividend < 0 {
		return 0, fmt.Errorf("%w: negative dividend %d", fault.ErrArithmetic, dividend)
	}

	quotient := dividend / divisor
	remainder := dividend % divisor

	if err := CheckDivisionWitness(dividend, divisor, quotient, remainder); err != nil {
		return 0, err
	}

	return quotient, nil
}

// CheckDivisionWitness validates a (quotient, remainder) pair against the
// dividend and divisor. The cross-multiplication runs in big.Int so the
// check itself cannot overflow.
func CheckDivisionWitness(dividend, divisor, quotient, remainder int64) error {
	if remainder < 0 || remainder >= divisor {
		return fmt.Errorf("%w: remainder %d out of range for divisor %d",
			fault.ErrArithmetic, remainder, divisor)
	}

	product := getBig()
	product.Mul(big.NewInt(quotient), big.NewInt(divisor))
	product.Add(product, big.NewInt(remainder))
	ok := product.Cmp(big.NewInt(dividend)) == 0
	putBig(product)

	if !ok {
		return fmt.Errorf("%w: witness %d*%d+%d != %d",
			fault.ErrArithmetic, quotient, divisor, remainder, dividend)
	}

	return nil
}

// VerifiedDivideBig performs floor division on a big.Int dividend with the
// same witness validation. Used by the cumulative scaling factor, whose
// intermediates exceed int64.
func VerifiedDivideBig(dividend *big.Int, divisor *big.Int) (*big.Int, error) {
	if divisor.Sign() <= 0 {
		return nil, fmt.Errorf("%w: divisor %s", fault.ErrArithmetic, divisor)
	}
	if dividend.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative dividend %s", fault.ErrArithmetic, dividend)
	}

	quotient := new(big.Int)
	remainder := new(big.Int)
	quotient.DivMod(dividend, divisor, remainder)

	if remainder.Cmp(divisor) >= 0 {
		return nil, fmt.Errorf("%w: remainder %s out of range", fault.ErrArithmetic, remainder)
	}

	check := new(big.Int).Mul(quotient, divisor)
	check.Add(check, remainder)
	if check.Cmp(dividend) != 0 {
		return nil, fmt.Errorf("%w: big witness mismatch", fault.ErrArithmetic)
	}

	return quotient, nil
}

func divisorErr(divisor int64) error {
	return fmt.Errorf("%w: division by %d", fault.ErrArithmetic, divisor)
}

func overflowErr(a, b, den int64) error {
	return fmt.Errorf("%w: %d*%d/%d overflows int64", fault.ErrArithmetic, a, b, den)
}
