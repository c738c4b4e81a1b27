package ids_test

import (
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/CarbonNeuron/carbon-files-sub000/internal/ids"
)

var _ = Describe("identifier generation", func() {
	It("generates a 10-char bucket id", func() {
		id := ids.BucketID()
		Expect(id).To(HaveLen(10))
	})

	It("generates a 6-char short code", func() {
		Expect(ids.ShortCode()).To(HaveLen(6))
	})

	It("generates non-colliding values across repeated calls", func() {
		seen := map[string]bool{}
		for i := 0; i < 200; i++ {
			id := ids.BucketID()
			Expect(seen).NotTo(HaveKey(id))
			seen[id] = true
		}
	})

	It("formats an api key as cf4_{prefix}_{secret} with the prefix reusable as the stored row key", func() {
		full, prefix := ids.ApiKey()
		Expect(full).To(HavePrefix("cf4_"))
		Expect(prefix).To(HavePrefix("cf4_"))
		Expect(full).To(HavePrefix(prefix + "_"))
		parts := strings.SplitN(full, "_", 3)
		Expect(parts).To(HaveLen(3))
	})

	It("formats an upload token as cfu_{48 hex chars}", func() {
		tok := ids.UploadToken()
		Expect(tok).To(HavePrefix("cfu_"))
		Expect(strings.TrimPrefix(tok, "cfu_")).To(HaveLen(48))
	})

	It("returns a non-empty temp suffix", func() {
		Expect(ids.TempSuffix()).NotTo(BeEmpty())
	})
})
