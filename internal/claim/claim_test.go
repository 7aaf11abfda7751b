package claim_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/claims-management/internal/claim"
	claimDatamodel "github.com/frahmantamala/claims-management/internal/core/datamodel/claim"
)

var _ = Describe("Claim", func() {
	DescribeTable("ComputeTotal and thresholds",
		func(sessions, hours, rate int, total int64, autoApprove, review bool) {
			got := claim.ComputeTotal(sessions, hours, rate)
			Expect(got.Equal(decimal.NewFromInt(total))).To(BeTrue())
			Expect(claim.QualifiesForAutoApproval(got)).To(Equal(autoApprove))
			Expect(claim.NeedsManualReview(got)).To(Equal(review))
		},
		Entry("small claim", 2, 3, 100, int64(600), true, false),
		Entry("exactly the auto-approval limit", 1, 10, 100, int64(1000), true, false),
		Entry("just above the auto-approval limit", 1, 1, 1001, int64(1001), false, false),
		Entry("exactly the review limit", 10, 10, 500, int64(50000), false, false),
		Entry("above the review limit", 10, 10, 600, int64(60000), false, true),
		Entry("large factors do not overflow", 1000, 1000, 1000000, int64(1000000000000), false, true),
	)

	It("parses only known statuses", func() {
		s, err := claim.ParseStatus("Verified")
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(Equal(claim.StatusVerified))

		_, err = claim.ParseStatus("verified")
		Expect(err).To(MatchError(claim.ErrUnknownStatus))
	})

	It("marks Approved and Rejected as terminal", func() {
		Expect(claim.StatusApproved.IsTerminal()).To(BeTrue())
		Expect(claim.StatusRejected.IsTerminal()).To(BeTrue())
		Expect(claim.StatusPending.IsTerminal()).To(BeFalse())
		Expect(claim.StatusVerified.IsTerminal()).To(BeFalse())
	})

	It("stores documents as an ordered separated column", func() {
		c := &claim.Claim{SupportingDocuments: []string{"b.pdf", "a.docx"}, Status: claim.StatusPending}
		row := c.ToDataModel()
		Expect(row.SupportingDocuments).To(Equal("b.pdf;a.docx"))
		Expect(claim.FromDataModel(row).SupportingDocuments).To(Equal([]string{"b.pdf", "a.docx"}))

		empty := claim.FromDataModel(&claimDatamodel.Claim{})
		Expect(empty.SupportingDocuments).NotTo(BeNil())
		Expect(empty.SupportingDocuments).To(BeEmpty())
	})
})
