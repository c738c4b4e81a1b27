package api_test

import (
	"net/http"
	"os"
	"path/filepath"

	. "github.com/onsi/gomega"

	"github.com/CarbonNeuron/carbon-files-sub000/internal/api"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/auth"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/blob"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/cache"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/config"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/hub"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/service"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/store"
)

const testAdminKey = "test-admin-key"

func newTestServer() (http.Handler, func()) {
	return newTestServerWithConfig(func(*config.Config) {})
}

func newTestServerWithConfig(tweak func(*config.Config)) (http.Handler, func()) {
	dir, err := os.MkdirTemp("", "api-test-*")
	Expect(err).NotTo(HaveOccurred())

	st, err := store.Open(filepath.Join(dir, "carbonfiles.db"))
	Expect(err).NotTo(HaveOccurred())
	bl := blob.New(filepath.Join(dir, "blobs"))
	ca := cache.New()
	hb := hub.New()
	ar := auth.NewResolver(testAdminKey, "test-jwt-secret", st, ca)
	svc := service.New(st, bl, ca, hb, ar)

	cfg := &config.Config{AdminKey: testAdminKey, JwtSecret: "test-jwt-secret", CorsOrigins: "*"}
	tweak(cfg)
	srv := api.NewServer(svc, ar, cfg, st)

	return srv, func() {
		st.Close()
		os.RemoveAll(dir)
	}
}
