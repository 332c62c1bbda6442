package internal

import (
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/frankban/quicktest"
	"github.com/shopspring/decimal"
)

func TestSanitizePhone(t *testing.T) {
	c := quicktest.New(t)

	tests := []struct {
		name    string
		phone   string
		want    string
		wantErr bool
	}{
		{name: "US number without country code", phone: "2125552368", want: "+12125552368"},
		{name: "US number with country code", phone: "+1 212 555 2368", want: "+12125552368"},
		{name: "UK number with country code", phone: "+447911123456", want: "+447911123456"},
		{name: "spanish number with country code", phone: "+34623456789", want: "+34623456789"},
		{name: "too short", phone: "12345", wantErr: true},
		{name: "not a number", phone: "phone", wantErr: true},
	}
	for _, tt := range tests {
		c.Run(tt.name, func(c *quicktest.C) {
			got, err := SanitizeAndVerifyPhoneNumber(tt.phone)
			if tt.wantErr {
				c.Assert(err, quicktest.IsNotNil)
				return
			}
			c.Assert(err, quicktest.IsNil)
			c.Assert(got, quicktest.Equals, tt.want)
		})
	}
}

func TestValidEmail(t *testing.T) {
	c := quicktest.New(t)
	c.Assert(ValidEmail("ops@example.com"), quicktest.IsTrue)
	c.Assert(ValidEmail("ops+alerts@mail.example.org"), quicktest.IsTrue)
	c.Assert(ValidEmail("ops@"), quicktest.IsFalse)
	c.Assert(ValidEmail("example.com"), quicktest.IsFalse)
}

func TestClampLimit(t *testing.T) {
	c := quicktest.New(t)
	c.Assert(ClampLimit(0, 10, 100), quicktest.Equals, 10)
	c.Assert(ClampLimit(-3, 10, 100), quicktest.Equals, 10)
	c.Assert(ClampLimit(50, 10, 100), quicktest.Equals, 50)
	c.Assert(ClampLimit(500, 10, 100), quicktest.Equals, 100)
}

func TestMoney(t *testing.T) {
	c := quicktest.New(t)
	c.Assert(FormatCents(1999, "usd"), quicktest.Equals, "19.99 USD")
	c.Assert(FormatCents(5, "eur"), quicktest.Equals, "0.05 EUR")
	c.Assert(FormatCents(1500, "jpy"), quicktest.Equals, "1500 JPY")
	c.Assert(CentsToDecimal(1999, "usd").String(), quicktest.Equals, "19.99")
	cents, err := DecimalToCents(decimal.RequireFromString("12.345"), "usd")
	c.Assert(err, quicktest.IsNil)
	c.Assert(cents, quicktest.Equals, int64(1235))
	cents, err = DecimalToCents(decimal.RequireFromString("700"), "jpy")
	c.Assert(err, quicktest.IsNil)
	c.Assert(cents, quicktest.Equals, int64(700))
	cents, err = DecimalToCents(decimal.RequireFromString("92233720368547758.07"), "usd")
	c.Assert(err, quicktest.IsNil)
	c.Assert(cents, quicktest.Equals, int64(math.MaxInt64))
	_, err = DecimalToCents(decimal.RequireFromString("92233720368547758.08"), "usd")
	c.Assert(err, quicktest.ErrorMatches, "amount .* USD is out of range")
	_, err = DecimalToCents(decimal.RequireFromString("100000000000000000000"), "usd")
	c.Assert(err, quicktest.IsNotNil)

	d, err := ParseTokenAmount(" 0.000000000000000001 ")
	c.Assert(err, quicktest.IsNil)
	c.Assert(d.String(), quicktest.Equals, "0.000000000000000001")
	_, err = ParseTokenAmount("-1")
	c.Assert(err, quicktest.IsNotNil)
	_, err = ParseTokenAmount("abc")
	c.Assert(err, quicktest.IsNotNil)
}

func TestWallet(t *testing.T) {
	c := quicktest.New(t)
	addr, err := ParseAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	c.Assert(err, quicktest.IsNil)
	c.Assert(addr.Hex(), quicktest.Equals, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")

	_, err = ParseAddress("0x1234")
	c.Assert(err, quicktest.IsNotNil)
	_, err = ParseAddress("0x0000000000000000000000000000000000000000")
	c.Assert(err, quicktest.IsNotNil)

	h, err := ParseTxHash("0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b")
	c.Assert(err, quicktest.IsNil)
	c.Assert(h.Hex(), quicktest.Equals, "0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b")

	_, err = ParseTxHash("88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b")
	c.Assert(err, quicktest.IsNotNil)
	_, err = ParseTxHash("0x88df")
	c.Assert(err, quicktest.IsNotNil)
	_, err = ParseTxHash("0xzzdf016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b")
	c.Assert(err, quicktest.IsNotNil)
}

func TestLockManager(t *testing.T) {
	c := quicktest.New(t)
	lm := NewLockManager()

	unlock := lm.Lock("a")
	released := make(chan struct{})
	go func() {
		defer close(released)
		lm.Lock("a")()
	}()
	// other keys are not blocked by "a"
	lm.Lock("b")()
	select {
	case <-released:
		c.Fatal("second holder of the same key")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()
	unlock()
	<-released

	lm.mu.Lock()
	defer lm.mu.Unlock()
	c.Assert(lm.locks, quicktest.HasLen, 0)
}

func TestLockManagerExclusive(t *testing.T) {
	c := quicktest.New(t)
	lm := NewLockManager()

	var holders, overlaps atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 2000 {
				unlock := lm.Lock("agent")
				if holders.Add(1) > 1 {
					overlaps.Add(1)
				}
				holders.Add(-1)
				unlock()
			}
		}()
	}
	wg.Wait()
	c.Assert(overlaps.Load(), quicktest.Equals, int32(0))
	lm.mu.Lock()
	defer lm.mu.Unlock()
	c.Assert(lm.locks, quicktest.HasLen, 0)
}
