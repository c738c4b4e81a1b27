package service_test

import (
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/CarbonNeuron/carbon-files-sub000/internal/auth"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/service"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/xerr"
)

var _ = Describe("Upload and File lifecycle", func() {
	var (
		svc     *service.Services
		cleanup func()
		bucket  string
	)

	BeforeEach(func() {
		svc, cleanup = newFixture()
		b, err := svc.Bucket.Create("drop", "", "", ownerCtx("acme"))
		Expect(err).NotTo(HaveOccurred())
		bucket = b.ID
	})

	AfterEach(func() {
		cleanup()
	})

	It("commits a new file, assigns a short code and bumps bucket aggregates", func() {
		tok, err := svc.Upload.Authorize(bucket, ownerCtx("acme"), "")
		Expect(err).NotTo(HaveOccurred())
		Expect(tok).To(BeNil())

		uploaded, err := svc.Upload.CommitFile(bucket, "Docs/Readme.md", strings.NewReader("hello"))
		Expect(err).NotTo(HaveOccurred())
		Expect(uploaded.Path).To(Equal("docs/readme.md"))
		Expect(uploaded.Size).To(Equal(int64(5)))
		Expect(uploaded.ShortCode).NotTo(BeEmpty())

		detail, err := svc.Bucket.GetById(bucket)
		Expect(err).NotTo(HaveOccurred())
		Expect(detail.FileCount).To(Equal(int64(1)))
		Expect(detail.TotalSize).To(Equal(int64(5)))
	})

	It("preserves the short code across a re-upload of the same path", func() {
		first, err := svc.Upload.CommitFile(bucket, "a.txt", strings.NewReader("v1"))
		Expect(err).NotTo(HaveOccurred())

		second, err := svc.Upload.CommitFile(bucket, "a.txt", strings.NewReader("v2-longer"))
		Expect(err).NotTo(HaveOccurred())
		Expect(second.ShortCode).To(Equal(first.ShortCode))
		Expect(second.Size).To(Equal(int64(len("v2-longer"))))

		detail, err := svc.Bucket.GetById(bucket)
		Expect(err).NotTo(HaveOccurred())
		Expect(detail.FileCount).To(Equal(int64(1)))
		Expect(detail.TotalSize).To(Equal(int64(len("v2-longer"))))
	})

	It("rejects upload from an unrelated Owner without an upload token", func() {
		_, err := svc.Upload.Authorize(bucket, ownerCtx("intruder"), "")
		Expect(err).To(HaveOccurred())
		f, ok := xerr.As(err)
		Expect(ok).To(BeTrue())
		Expect(f.Code).To(Equal(xerr.Authorization))
	})

	It("authorizes upload via a valid upload token and tracks its usage", func() {
		maxUploads := int64(1)
		created, err := svc.UploadToken.Create(bucket, "1h", &maxUploads, ownerCtx("acme"))
		Expect(err).NotTo(HaveOccurred())

		tok, err := svc.Upload.Authorize(bucket, &auth.Context{Role: auth.Public}, created.Token)
		Expect(err).NotTo(HaveOccurred())
		Expect(tok).NotTo(BeNil())

		_, err = svc.Upload.CommitFile(bucket, "via-token.bin", strings.NewReader("data"))
		Expect(err).NotTo(HaveOccurred())
		svc.Upload.ConsumeToken(tok, 1)

		_, valid, err := svc.UploadToken.Validate(created.Token)
		Expect(err).NotTo(HaveOccurred())
		Expect(valid).To(BeFalse())
	})

	Describe("FileService.Patch", func() {
		It("overwrites an in-place range and updates file size", func() {
			_, err := svc.Upload.CommitFile(bucket, "p.bin", strings.NewReader("Hello, World!"))
			Expect(err).NotTo(HaveOccurred())

			f, err := svc.File.Patch(bucket, "p.bin", strings.NewReader("Earth"), 7, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(f.Size).To(Equal(int64(13)))
		})

		It("appends past the current end and grows the bucket's total size", func() {
			_, err := svc.Upload.CommitFile(bucket, "p.bin", strings.NewReader("Hello"))
			Expect(err).NotTo(HaveOccurred())

			f, err := svc.File.Patch(bucket, "p.bin", strings.NewReader(", World"), 0, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(f.Size).To(Equal(int64(12)))

			detail, err := svc.Bucket.GetById(bucket)
			Expect(err).NotTo(HaveOccurred())
			Expect(detail.TotalSize).To(Equal(int64(12)))
		})

		It("rejects patching a file that was never uploaded", func() {
			_, err := svc.File.Patch(bucket, "nope.bin", strings.NewReader("x"), 0, false)
			Expect(err).To(HaveOccurred())
			f, ok := xerr.As(err)
			Expect(ok).To(BeTrue())
			Expect(f.Code).To(Equal(xerr.NotFound))
		})
	})

	It("deletes a file, its short url, and decrements bucket aggregates", func() {
		uploaded, err := svc.Upload.CommitFile(bucket, "del.txt", strings.NewReader("bye"))
		Expect(err).NotTo(HaveOccurred())

		Expect(svc.File.Delete(bucket, "del.txt", ownerCtx("acme"))).To(Succeed())

		_, err = svc.File.GetMetadata(bucket, "del.txt")
		Expect(err).To(HaveOccurred())

		_, err = svc.ShortUrl.Resolve(uploaded.ShortCode)
		Expect(err).To(HaveOccurred())

		detail, err := svc.Bucket.GetById(bucket)
		Expect(err).NotTo(HaveOccurred())
		Expect(detail.FileCount).To(Equal(int64(0)))
		Expect(detail.TotalSize).To(Equal(int64(0)))
	})
})
