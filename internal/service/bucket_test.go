package service_test

import (
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/CarbonNeuron/carbon-files-sub000/internal/auth"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/service"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/xerr"
)

var _ = Describe("BucketService", func() {
	var (
		svc     *service.Services
		cleanup func()
	)

	BeforeEach(func() {
		svc, cleanup = newFixture()
	})

	AfterEach(func() {
		cleanup()
	})

	It("creates a bucket owned by the caller and retrieves it", func() {
		b, err := svc.Bucket.Create("photos", "vacation pics", "", ownerCtx("acme"))
		Expect(err).NotTo(HaveOccurred())
		Expect(b.Owner).To(Equal("acme"))
		Expect(b.ExpiresAt).NotTo(BeNil())

		detail, err := svc.Bucket.GetById(b.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(detail.Name).To(Equal("photos"))
		Expect(detail.Files).To(BeEmpty())
	})

	It("rejects bucket creation from a Public caller", func() {
		_, err := svc.Bucket.Create("x", "", "", &auth.Context{Role: auth.Public})
		Expect(err).To(HaveOccurred())
		f, ok := xerr.As(err)
		Expect(ok).To(BeTrue())
		Expect(f.Code).To(Equal(xerr.Authorization))
	})

	It("rejects an empty name", func() {
		_, err := svc.Bucket.Create("  ", "", "", adminCtx)
		Expect(err).To(HaveOccurred())
		f, ok := xerr.As(err)
		Expect(ok).To(BeTrue())
		Expect(f.Code).To(Equal(xerr.Validation))
	})

	It("lets only the owning Owner manage their bucket, not a different owner", func() {
		b, err := svc.Bucket.Create("docs", "", "", ownerCtx("acme"))
		Expect(err).NotTo(HaveOccurred())

		name := "renamed"
		_, err = svc.Bucket.Update(b.ID, service.BucketPatch{Name: &name}, ownerCtx("other"))
		Expect(err).To(HaveOccurred())
		f, ok := xerr.As(err)
		Expect(ok).To(BeTrue())
		Expect(f.Code).To(Equal(xerr.Authorization))

		updated, err := svc.Bucket.Update(b.ID, service.BucketPatch{Name: &name}, ownerCtx("acme"))
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.Name).To(Equal("renamed"))
	})

	It("lets Admin manage any bucket", func() {
		b, err := svc.Bucket.Create("docs", "", "", ownerCtx("acme"))
		Expect(err).NotTo(HaveOccurred())

		desc := "admin edited this"
		_, err = svc.Bucket.Update(b.ID, service.BucketPatch{Description: &desc}, adminCtx)
		Expect(err).NotTo(HaveOccurred())
	})

	It("lists only the caller's own buckets for an Owner, all for Admin", func() {
		_, err := svc.Bucket.Create("a", "", "", ownerCtx("acme"))
		Expect(err).NotTo(HaveOccurred())
		_, err = svc.Bucket.Create("b", "", "", ownerCtx("beta"))
		Expect(err).NotTo(HaveOccurred())

		acmeList, err := svc.Bucket.List(service.Page{}, ownerCtx("acme"), false)
		Expect(err).NotTo(HaveOccurred())
		Expect(acmeList.Buckets).To(HaveLen(1))

		adminList, err := svc.Bucket.List(service.Page{}, adminCtx, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(adminList.Buckets).To(HaveLen(2))
	})

	It("renders a plain-text summary containing file entries", func() {
		b, err := svc.Bucket.Create("reports", "", "", ownerCtx("acme"))
		Expect(err).NotTo(HaveOccurred())
		tok, err := svc.Upload.Authorize(b.ID, ownerCtx("acme"), "")
		Expect(err).NotTo(HaveOccurred())
		_, err = svc.Upload.CommitFile(b.ID, "report.csv", strings.NewReader("a,b,c"))
		Expect(err).NotTo(HaveOccurred())
		svc.Upload.ConsumeToken(tok, 1)

		summary, err := svc.Bucket.Summary(b.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary).To(ContainSubstring("report.csv"))
		Expect(summary).To(ContainSubstring("Bucket: reports"))
	})

	It("cascades deletion of files, short urls and the bucket row", func() {
		b, err := svc.Bucket.Create("temp", "", "", ownerCtx("acme"))
		Expect(err).NotTo(HaveOccurred())
		uploaded, err := svc.Upload.CommitFile(b.ID, "a.txt", strings.NewReader("x"))
		Expect(err).NotTo(HaveOccurred())

		Expect(svc.Bucket.Delete(b.ID, ownerCtx("acme"))).To(Succeed())

		_, err = svc.File.GetMetadata(b.ID, "a.txt")
		Expect(err).To(HaveOccurred())
		_, err = svc.ShortUrl.Resolve(uploaded.ShortCode)
		Expect(err).To(HaveOccurred())

		_, err = svc.Bucket.GetById(b.ID)
		Expect(err).To(HaveOccurred())
		f, ok := xerr.As(err)
		Expect(ok).To(BeTrue())
		Expect(f.Code).To(Equal(xerr.NotFound))
	})
})
