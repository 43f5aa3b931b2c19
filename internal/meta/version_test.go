package meta_test

import (
	"runtime"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/respd/internal/meta"
)

var _ = Describe("GetInfo()", func() {
	It("reports a dev version when none was linked in", func() {
		Expect(meta.GetInfo().Version).To(Equal("dev"))
	})

	It("reports the running Go version and platform", func() {
		info := meta.GetInfo()

		Expect(info.GoVersion).To(Equal(runtime.Version()))
		Expect(info.Platform).To(Equal(runtime.GOOS + " " + runtime.GOARCH))
	})
})
