package askcmder

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chathub/cmd/chathub/setup"
	"github.com/papercomputeco/chathub/pkg/sydney"
)

var _ = Describe("Ask Command", func() {
	var (
		create     *httptest.Server
		configPath string
		cookies    chan string
	)

	BeforeEach(func() {
		cookies = make(chan string, 1)
		create = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookies <- r.Header.Get("cookie")
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"result":{"value":"UnauthorizedRequest","message":"Captcha required"}}`)
		}))

		configPath = filepath.Join(GinkgoT().TempDir(), "config.toml")
		content := fmt.Sprintf(`
[chathub]
cookie = "_U=test"
create_url = %q
hub_url = "ws://127.0.0.1:1/unused"

[store]
driver = "memory"
`, create.URL)
		Expect(os.WriteFile(configPath, []byte(content), 0o600)).To(Succeed())
	})

	AfterEach(func() {
		create.Close()
	})

	It("prints the creation failure as the answer", func() {
		out := &bytes.Buffer{}
		cmd := NewAskCmd(&setup.Options{ConfigPath: configPath})
		cmd.SetOut(out)
		cmd.SetArgs([]string{"hello", "there"})

		Expect(cmd.ExecuteContext(context.Background())).To(Succeed())
		Expect(out.String()).To(Equal("Captcha required\n"))
		Expect(cookies).To(Receive(Equal("_U=test")))
	})

	It("fails on an invalid config", func() {
		Expect(os.WriteFile(configPath, []byte(`[store]
driver = "etcd"
`), 0o600)).To(Succeed())

		cmd := NewAskCmd(&setup.Options{ConfigPath: configPath})
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"hello"})

		Expect(cmd.ExecuteContext(context.Background())).To(MatchError(ContainSubstring("store.driver")))
	})

	It("requires a message", func() {
		cmd := NewAskCmd(&setup.Options{ConfigPath: configPath})
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{})

		Expect(cmd.ExecuteContext(context.Background())).NotTo(Succeed())
	})

	DescribeTable("parseStyle",
		func(in string, want sydney.Style) {
			Expect(parseStyle(in)).To(Equal(want))
		},
		Entry("empty keeps the configured default", "", sydney.Style("")),
		Entry("known style", "Creative", sydney.StyleCreative),
		Entry("unknown style falls back to balanced", "loud", sydney.StyleBalanced),
	)
})
