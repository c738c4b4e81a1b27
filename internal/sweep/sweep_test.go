package sweep_test

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/CarbonNeuron/carbon-files-sub000/internal/auth"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/blob"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/cache"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/hub"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/service"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/store"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/sweep"
)

var adminCtx = &auth.Context{Role: auth.Admin}

func newFixture() (*store.Store, *blob.Store, *service.Services, *sweep.Sweeper, func()) {
	dir, err := os.MkdirTemp("", "sweep-test-*")
	Expect(err).NotTo(HaveOccurred())

	st, err := store.Open(filepath.Join(dir, "carbonfiles.db"))
	Expect(err).NotTo(HaveOccurred())
	bl := blob.New(filepath.Join(dir, "blobs"))
	ca := cache.New()
	hb := hub.New()
	ar := auth.NewResolver("admin-key", "jwt-secret", st, ca)
	svc := service.New(st, bl, ca, hb, ar)

	sw := sweep.New(st, bl, ca, svc.UploadToken, time.Minute)

	return st, bl, svc, sw, func() {
		st.Close()
		os.RemoveAll(dir)
	}
}

var _ = Describe("Sweeper", func() {
	It("reclaims an expired bucket's rows, blobs and cache entries", func() {
		_, bl, svc, sw, cleanup := newFixture()
		defer cleanup()

		b, err := svc.Bucket.Create("stale", "", "1d", adminCtx)
		Expect(err).NotTo(HaveOccurred())
		_, err = svc.Upload.CommitFile(b.ID, "a.txt", strings.NewReader("hi"))
		Expect(err).NotTo(HaveOccurred())

		past := strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)
		_, err = svc.Bucket.Update(b.ID, service.BucketPatch{ExpiresIn: &past}, adminCtx)
		Expect(err).NotTo(HaveOccurred())

		n, err := sw.RunOnce()
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))

		_, err = svc.Bucket.GetById(b.ID)
		Expect(err).To(HaveOccurred())
		_, _, err = bl.OpenRead(b.ID, "a.txt")
		Expect(err).To(Equal(blob.ErrNotFound))
	})

	It("removes an orphan blob left in a live bucket's directory with no metadata row", func() {
		_, bl, svc, sw, cleanup := newFixture()
		defer cleanup()

		b, err := svc.Bucket.Create("live", "", "1d", adminCtx)
		Expect(err).NotTo(HaveOccurred())
		_, err = svc.Upload.CommitFile(b.ID, "known.txt", strings.NewReader("known"))
		Expect(err).NotTo(HaveOccurred())

		_, err = bl.StoreAtomic(b.ID, "orphan.txt", strings.NewReader("no row for me"))
		Expect(err).NotTo(HaveOccurred())

		orphans, err := sw.RepairOrphans(b.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(orphans).To(ConsistOf("orphan.txt"))

		_, _, err = bl.OpenRead(b.ID, "orphan.txt")
		Expect(err).To(Equal(blob.ErrNotFound))
		_, _, err = bl.OpenRead(b.ID, "known.txt")
		Expect(err).NotTo(HaveOccurred())
	})

	It("leaves orphan repair as a no-op when nothing is orphaned", func() {
		_, _, svc, sw, cleanup := newFixture()
		defer cleanup()

		b, err := svc.Bucket.Create("clean", "", "1d", adminCtx)
		Expect(err).NotTo(HaveOccurred())
		_, err = svc.Upload.CommitFile(b.ID, "a.txt", strings.NewReader("x"))
		Expect(err).NotTo(HaveOccurred())

		orphans, err := sw.RepairOrphans(b.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(orphans).To(BeEmpty())
	})
})
