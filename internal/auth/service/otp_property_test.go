package service_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/aussiebroadwan/accounts/internal/auth/service"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestOtpAttemptsProperties submits random right and wrong codes against a
// challenge with a random attempt budget and checks the outcome of every
// verify against a model of the attempt counter.
func TestOtpAttemptsProperties(t *testing.T) {
	t.Parallel()

	params := gopter.DefaultTestParameters()
	// Each verify hashes with argon2, so keep the run small.
	params.MinSuccessfulTests = 25
	properties := gopter.NewProperties(params)

	runs := 0
	properties.Property("a challenge succeeds at most once and never after it is spent", prop.ForAll(
		func(maxAttempts int, submissions []bool) string {
			ctx := context.Background()
			runs++
			email := fmt.Sprintf("prop-%d@example.com", runs)
			otps, _ := newOtpStore(t, service.OtpConfig{MaxAttempts: maxAttempts})

			code, _, err := otps.Issue(ctx, email, "")
			if err != nil {
				return fmt.Sprintf("issue: %v", err)
			}

			var (
				attempts  int
				used      bool
				successes int
			)
			for i, right := range submissions {
				guess := wrongCode(code)
				if right {
					guess = code
				}
				v, err := otps.Verify(ctx, email, guess)
				if err != nil {
					return fmt.Sprintf("verify %d: %v", i, err)
				}
				if v.AttemptsRemaining < 0 {
					return fmt.Sprintf("verify %d: negative remaining %d", i, v.AttemptsRemaining)
				}

				if used || attempts >= maxAttempts {
					if v.Success || v.AttemptsRemaining != 0 {
						return fmt.Sprintf("verify %d: spent challenge returned %+v", i, v)
					}
					continue
				}

				attempts++
				want := maxAttempts - attempts
				if v.Success != right || v.AttemptsRemaining != want {
					return fmt.Sprintf("verify %d: got success=%v remaining=%d, want success=%v remaining=%d",
						i, v.Success, v.AttemptsRemaining, right, want)
				}
				if v.Success {
					successes++
					used = true
				}
			}
			if successes > 1 {
				return fmt.Sprintf("%d successes", successes)
			}
			return ""
		},
		gen.IntRange(1, 5),
		gen.SliceOfN(7, gen.Bool()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
