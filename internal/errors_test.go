package internal_test

import (
	"errors"
	"fmt"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/claims-management/internal"
)

var _ = Describe("AppError", func() {
	It("matches its sentinel through copies and wrapping", func() {
		err := fmt.Errorf("verify: %w", internal.ErrInvalidTransition.WithMessage("claim 7 is Approved"))

		Expect(errors.Is(err, internal.ErrInvalidTransition)).To(BeTrue())
		Expect(errors.Is(err, internal.ErrClaimNotFound)).To(BeFalse())
	})

	It("leaves the sentinel untouched when adding a cause", func() {
		cause := errors.New("disk full")
		err := internal.ErrStoreFailure.WithCause(cause)

		Expect(errors.Is(err, cause)).To(BeTrue())
		Expect(internal.ErrStoreFailure.Cause).To(BeNil())
	})

	It("maps to an HTTP status and error envelope", func() {
		status, body := internal.ErrTooManyRequests.ToHTTPResponse()

		Expect(status).To(Equal(http.StatusTooManyRequests))
		Expect(body).To(Equal(internal.Response{Error: internal.ErrTooManyRequests}))
	})

	It("reports the first field message and all of them in detail", func() {
		err := internal.NewValidationErrors([]internal.ValidationError{
			{Field: "sessions", Message: "sessions must be at least 1"},
			{Field: "rate", Message: "rate must be at least 1"},
		})

		Expect(err.Error()).To(Equal("sessions must be at least 1"))
		Expect(err.GetDetailedMessage()).To(Equal("sessions must be at least 1; rate must be at least 1"))
		Expect(err.StatusCode).To(Equal(http.StatusBadRequest))
	})

	It("does not leak the cause in JSON", func() {
		b, err := internal.ErrStoreFailure.WithMessage(internal.GenericStoreMessage).WithCause(errors.New("pq: relation missing")).MarshalJSON()

		Expect(err).NotTo(HaveOccurred())
		Expect(string(b)).NotTo(ContainSubstring("relation missing"))
		Expect(string(b)).To(ContainSubstring(internal.GenericStoreMessage))
	})

	It("extracts an AppError from a wrapped chain", func() {
		appErr, ok := internal.IsAppError(fmt.Errorf("outer: %w", internal.ErrMissingToken))

		Expect(ok).To(BeTrue())
		Expect(appErr.Code).To(Equal(internal.ErrCodeMissingToken))
	})
})
