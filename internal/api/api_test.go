package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/CarbonNeuron/carbon-files-sub000/internal/config"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/store"
)

func doReq(h http.Handler, method, path, body, bearer string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if bearer != "" {
		r.Header.Set("Authorization", "Bearer "+bearer)
	}
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func createBucket(h http.Handler, bearer, name string) store.Bucket {
	w := doReq(h, http.MethodPost, "/api/buckets", fmt.Sprintf(`{"name":%q}`, name), bearer)
	ExpectWithOffset(1, w.Code).To(Equal(http.StatusCreated))
	var b store.Bucket
	ExpectWithOffset(1, json.Unmarshal(w.Body.Bytes(), &b)).To(Succeed())
	return b
}

func streamUpload(h http.Handler, bearer, bucketID, filename, content string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPut, "/api/buckets/"+bucketID+"/upload/stream?filename="+filename, strings.NewReader(content))
	if bearer != "" {
		r.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

var _ = Describe("CarbonFiles HTTP API", func() {
	var (
		h       http.Handler
		cleanup func()
	)

	BeforeEach(func() {
		h, cleanup = newTestServer()
	})

	AfterEach(func() {
		cleanup()
	})

	It("reports healthy on /healthz without auth", func() {
		w := doReq(h, http.MethodGet, "/healthz", "", "")
		Expect(w.Code).To(Equal(http.StatusOK))
	})

	It("lets an admin create, upload to, fetch, and delete a bucket end to end", func() {
		b := createBucket(h, testAdminKey, "photos")

		w := streamUpload(h, testAdminKey, b.ID, "a.txt", "hello world")
		Expect(w.Code).To(Equal(http.StatusCreated))

		w = doReq(h, http.MethodGet, "/api/buckets/"+b.ID+"/files/a.txt/content", "", testAdminKey)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(Equal("hello world"))

		w = doReq(h, http.MethodDelete, "/api/buckets/"+b.ID, "", testAdminKey)
		Expect(w.Code).To(Equal(http.StatusNoContent))

		w = doReq(h, http.MethodGet, "/api/buckets/"+b.ID, "", testAdminKey)
		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("rejects bucket creation from an unauthenticated caller", func() {
		w := doReq(h, http.MethodPost, "/api/buckets", `{"name":"x"}`, "")
		Expect(w.Code).To(Equal(http.StatusForbidden))
	})

	It("isolates buckets by owner: one api key cannot manage another's bucket", func() {
		w := doReq(h, http.MethodPost, "/api/keys", `{"name":"acme"}`, testAdminKey)
		Expect(w.Code).To(Equal(http.StatusCreated))
		var acmeKey struct {
			Key string `json:"key"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &acmeKey)).To(Succeed())

		w = doReq(h, http.MethodPost, "/api/keys", `{"name":"beta"}`, testAdminKey)
		Expect(w.Code).To(Equal(http.StatusCreated))
		var betaKey struct {
			Key string `json:"key"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &betaKey)).To(Succeed())

		b := createBucket(h, acmeKey.Key, "acme-bucket")

		w = doReq(h, http.MethodDelete, "/api/buckets/"+b.ID, "", betaKey.Key)
		Expect(w.Code).To(Equal(http.StatusForbidden))

		w = doReq(h, http.MethodDelete, "/api/buckets/"+b.ID, "", acmeKey.Key)
		Expect(w.Code).To(Equal(http.StatusNoContent))
	})

	It("serves a byte range with 206 and a correct Content-Range", func() {
		b := createBucket(h, testAdminKey, "range-bucket")
		streamUpload(h, testAdminKey, b.ID, "r.bin", "0123456789")

		r := httptest.NewRequest(http.MethodGet, "/api/buckets/"+b.ID+"/files/r.bin/content", nil)
		r.Header.Set("Authorization", "Bearer "+testAdminKey)
		r.Header.Set("Range", "bytes=2-4")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		Expect(w.Code).To(Equal(http.StatusPartialContent))
		Expect(w.Header().Get("Content-Range")).To(Equal("bytes 2-4/10"))
		Expect(w.Body.String()).To(Equal("234"))
	})

	It("returns 304 when If-None-Match matches the current ETag", func() {
		b := createBucket(h, testAdminKey, "etag-bucket")
		streamUpload(h, testAdminKey, b.ID, "e.txt", "content")

		w := doReq(h, http.MethodGet, "/api/buckets/"+b.ID+"/files/e.txt/content", "", testAdminKey)
		Expect(w.Code).To(Equal(http.StatusOK))
		etag := w.Header().Get("ETag")
		Expect(etag).NotTo(BeEmpty())

		r := httptest.NewRequest(http.MethodGet, "/api/buckets/"+b.ID+"/files/e.txt/content", nil)
		r.Header.Set("Authorization", "Bearer "+testAdminKey)
		r.Header.Set("If-None-Match", etag)
		w2 := httptest.NewRecorder()
		h.ServeHTTP(w2, r)
		Expect(w2.Code).To(Equal(http.StatusNotModified))
	})

	It("patches a file in place via Content-Range and appends via X-Append", func() {
		b := createBucket(h, testAdminKey, "patch-bucket")
		streamUpload(h, testAdminKey, b.ID, "p.bin", "Hello, World!")

		r := httptest.NewRequest(http.MethodPatch, "/api/buckets/"+b.ID+"/files/p.bin/content", strings.NewReader("Earth"))
		r.Header.Set("Authorization", "Bearer "+testAdminKey)
		r.Header.Set("Content-Range", "bytes 7-11/*")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		Expect(w.Code).To(Equal(http.StatusOK))

		w = doReq(h, http.MethodGet, "/api/buckets/"+b.ID+"/files/p.bin/content", "", testAdminKey)
		Expect(w.Body.String()).To(Equal("Hello, Earth!"))

		r = httptest.NewRequest(http.MethodPatch, "/api/buckets/"+b.ID+"/files/p.bin/content", strings.NewReader(" Bye"))
		r.Header.Set("Authorization", "Bearer "+testAdminKey)
		r.Header.Set("X-Append", "true")
		w = httptest.NewRecorder()
		h.ServeHTTP(w, r)
		Expect(w.Code).To(Equal(http.StatusOK))

		w = doReq(h, http.MethodGet, "/api/buckets/"+b.ID+"/files/p.bin/content", "", testAdminKey)
		Expect(w.Body.String()).To(Equal("Hello, Earth! Bye"))
	})

	It("requires Content-Range or X-Append on PATCH", func() {
		b := createBucket(h, testAdminKey, "patch-bucket-2")
		streamUpload(h, testAdminKey, b.ID, "p.bin", "abc")

		r := httptest.NewRequest(http.MethodPatch, "/api/buckets/"+b.ID+"/files/p.bin/content", strings.NewReader("z"))
		r.Header.Set("Authorization", "Bearer "+testAdminKey)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("authorizes an anonymous upload via a valid upload token and exhausts it after use", func() {
		b := createBucket(h, testAdminKey, "token-bucket")

		w := doReq(h, http.MethodPost, "/api/buckets/"+b.ID+"/tokens", `{"expires_in":"1h","max_uploads":1}`, testAdminKey)
		Expect(w.Code).To(Equal(http.StatusCreated))
		var tok struct {
			Token string `json:"token"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &tok)).To(Succeed())

		r := httptest.NewRequest(http.MethodPut, "/api/buckets/"+b.ID+"/upload/stream?filename=anon.txt&token="+tok.Token, strings.NewReader("anon data"))
		w = httptest.NewRecorder()
		h.ServeHTTP(w, r)
		Expect(w.Code).To(Equal(http.StatusCreated))

		r = httptest.NewRequest(http.MethodPut, "/api/buckets/"+b.ID+"/upload/stream?filename=anon2.txt&token="+tok.Token, strings.NewReader("more"))
		w = httptest.NewRecorder()
		h.ServeHTTP(w, r)
		Expect(w.Code).To(Equal(http.StatusForbidden))
	})

	It("commits each multipart part as its own file using the field-name rule", func() {
		b := createBucket(h, testAdminKey, "multipart-bucket")

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "pic.png")
		Expect(err).NotTo(HaveOccurred())
		fw.Write([]byte("binary-data"))
		Expect(mw.Close()).To(Succeed())

		r := httptest.NewRequest(http.MethodPost, "/api/buckets/"+b.ID+"/upload", &buf)
		r.Header.Set("Authorization", "Bearer "+testAdminKey)
		r.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		Expect(w.Code).To(Equal(http.StatusCreated))

		w = doReq(h, http.MethodGet, "/api/buckets/"+b.ID+"/files/pic.png/content", "", testAdminKey)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(Equal("binary-data"))
	})

	It("resolves a short url to a redirect at the file content route", func() {
		b := createBucket(h, testAdminKey, "short-bucket")
		streamUpload(h, testAdminKey, b.ID, "doc.txt", "short-url-target")

		w := doReq(h, http.MethodGet, "/api/buckets/"+b.ID, "", testAdminKey)
		var detail struct {
			Files []store.File `json:"files"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &detail)).To(Succeed())
		Expect(detail.Files).To(HaveLen(1))
		code := detail.Files[0].ShortCode
		Expect(code).NotTo(BeEmpty())

		r := httptest.NewRequest(http.MethodGet, "/s/"+code, nil)
		w = httptest.NewRecorder()
		h.ServeHTTP(w, r)
		Expect(w.Code).To(Equal(http.StatusFound))
		Expect(w.Header().Get("Location")).To(Equal("/api/buckets/" + b.ID + "/files/doc.txt/content"))
	})

	It("requires a bearer credential at the dashboard /me endpoint and 401s without one", func() {
		w := doReq(h, http.MethodGet, "/api/tokens/dashboard/me", "", "")
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})

	It("issues a dashboard credential for an admin and introspects it as admin via /me", func() {
		w := doReq(h, http.MethodPost, "/api/tokens/dashboard", `{"expires_in":"1h"}`, testAdminKey)
		Expect(w.Code).To(Equal(http.StatusCreated))
		var cred struct {
			Token string `json:"token"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &cred)).To(Succeed())

		w = doReq(h, http.MethodGet, "/api/tokens/dashboard/me", "", cred.Token)
		Expect(w.Code).To(Equal(http.StatusOK))
		var identity struct {
			Role             string `json:"role"`
			RemainingSeconds int64  `json:"remaining_seconds"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &identity)).To(Succeed())
		Expect(identity.Role).To(Equal("admin"))
		Expect(identity.RemainingSeconds).To(BeNumerically(">", 0))
		Expect(identity.RemainingSeconds).To(BeNumerically("<=", 3600))
	})

	It("exposes aggregate stats to an admin only", func() {
		createBucket(h, testAdminKey, "stats-bucket")

		w := doReq(h, http.MethodGet, "/api/stats", "", testAdminKey)
		Expect(w.Code).To(Equal(http.StatusOK))

		w = doReq(h, http.MethodGet, "/api/stats", "", "")
		Expect(w.Code).To(Equal(http.StatusForbidden))
	})
})

var _ = Describe("MaxUploadSize enforcement", func() {
	It("rejects a stream upload exceeding the configured cap with 413", func() {
		h, cleanup := newTestServerWithConfig(func(cfg *config.Config) {
			cfg.MaxUploadSize = 4
		})
		defer cleanup()

		b := createBucket(h, testAdminKey, "capped")
		w := streamUpload(h, testAdminKey, b.ID, "big.txt", "this body is well over the cap")
		Expect(w.Code).To(Equal(http.StatusRequestEntityTooLarge))
	})

	It("rejects a patch append exceeding the configured cap with 413", func() {
		h, cleanup := newTestServerWithConfig(func(cfg *config.Config) {
			cfg.MaxUploadSize = 64
		})
		defer cleanup()

		b := createBucket(h, testAdminKey, "capped2")
		Expect(streamUpload(h, testAdminKey, b.ID, "f.txt", "short").Code).To(Equal(http.StatusCreated))

		r := httptest.NewRequest(http.MethodPatch, "/api/buckets/"+b.ID+"/files/f.txt/content", strings.NewReader(strings.Repeat("x", 100)))
		r.Header.Set("Authorization", "Bearer "+testAdminKey)
		r.Header.Set("X-Append", "true")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		Expect(w.Code).To(Equal(http.StatusRequestEntityTooLarge))
	})
})
