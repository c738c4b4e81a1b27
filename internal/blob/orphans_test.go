package blob_test

import (
	"os"
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/CarbonNeuron/carbon-files-sub000/internal/blob"
)

var _ = Describe("OrphanFiles", func() {
	It("reports a blob with no corresponding metadata row", func() {
		dir, err := os.MkdirTemp("", "blob-orphan-*")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(dir)

		s := blob.New(dir)
		_, err = s.StoreAtomic("b1", "known.txt", strings.NewReader("a"))
		Expect(err).NotTo(HaveOccurred())
		_, err = s.StoreAtomic("b1", "orphan.txt", strings.NewReader("b"))
		Expect(err).NotTo(HaveOccurred())

		orphans, err := s.OrphanFiles("b1", map[string]bool{"known.txt": true})
		Expect(err).NotTo(HaveOccurred())
		Expect(orphans).To(ConsistOf("orphan.txt"))
	})

	It("returns no orphans for a bucket directory that doesn't exist yet", func() {
		dir, err := os.MkdirTemp("", "blob-orphan-empty-*")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(dir)

		s := blob.New(dir)
		orphans, err := s.OrphanFiles("never-created", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(orphans).To(BeEmpty())
	})
})
