package request_test

import (
	"testing"

	"github.com/nvidia-uda/uda/env"
	"github.com/nvidia-uda/uda/request"
	"github.com/nvidia-uda/uda/wire"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestParse(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, t.Name())
}

// fakeLookup implements request.FormatLookup with the handful of plugins
// the scenarios below need, standing in for a real plugin registry.
type fakeLookup struct{}

func (fakeLookup) LookupPrefix(prefix string) (request.Descriptor, bool) {
	switch prefix {
	case "NETCDF":
		return request.Descriptor{Format: "netcdf", Class: request.ClassFile, PluginID: wire.PluginFile}, true
	case "HELP":
		return request.Descriptor{Format: "help", Class: request.ClassFunction, PluginID: wire.PluginFunction}, true
	case "MDS":
		return request.Descriptor{Format: "mds", Class: request.ClassMDS, PluginID: wire.PluginMDS}, true
	default:
		return request.Descriptor{}, false
	}
}

func (fakeLookup) LookupExtension(ext string) (request.Descriptor, bool) {
	if ext == "nc" {
		return request.Descriptor{Format: "netcdf", Class: request.ClassFile, PluginID: wire.PluginFile}, true
	}
	return request.Descriptor{}, false
}

func (fakeLookup) LookupDevice(name string) (request.Descriptor, bool) {
	switch name {
	case "MAST":
		// Self-referential device/protocol pair, used only to exercise the
		// depth guard against a pathologically chained source string.
		return request.Descriptor{DeviceProtocol: "MAST", DeviceHost: "mast-server"}, true
	case "DIII":
		return request.Descriptor{DeviceProtocol: "MDS", DeviceHost: "diii-server", DevicePort: 8000}, true
	}
	return request.Descriptor{}, false
}

func testEnvironment() *env.Environment {
	return &env.Environment{
		DefaultArchive: "mast",
		DefaultFormat:  "ida",
		APIDelim:       "::",
	}
}

var _ = Describe("Parse", func() {
	var (
		environment *env.Environment
		lookup      request.FormatLookup
	)

	BeforeEach(func() {
		environment = testEnvironment()
		lookup = fakeLookup{}
	})

	Describe("generic catalog lookup by experiment number", func() {
		It("fills exp_number and leaves signal untouched", func() {
			rb, err := request.Parse("ip", "12345", environment, lookup)
			Expect(err).NotTo(HaveOccurred())
			Expect(rb.PluginID).To(Equal(wire.PluginGenericCatalog))
			Expect(rb.ExpNumber).To(Equal(int64(12345)))
			Expect(rb.Archive).To(Equal("mast"))
			Expect(rb.Signal).To(Equal("ip"))
			Expect(rb.Subset.Rank).To(Equal(0))
		})
	})

	Describe("bare file path resolved by extension", func() {
		It("routes to the FILE plugin and derives format from the extension", func() {
			rb, err := request.Parse("/group/x", "/data/run.nc", environment, lookup)
			Expect(err).NotTo(HaveOccurred())
			Expect(rb.PluginID).To(Equal(wire.PluginFile))
			Expect(rb.Format).To(Equal("netcdf"))
			Expect(rb.File).To(Equal("run.nc"))
			Expect(rb.Path).To(Equal("/data/run.nc"))
			Expect(rb.Signal).To(Equal("/group/x"))
		})
	})

	Describe("function call syntax with no signal", func() {
		It("parses the function name with empty arguments", func() {
			rb, err := request.Parse("", "help::ping()", environment, lookup)
			Expect(err).NotTo(HaveOccurred())
			Expect(rb.PluginID).To(Equal(wire.PluginFunction))
			Expect(rb.Function).To(Equal("ping"))
			Expect(rb.NameValueList.Pairs).To(BeEmpty())
		})
	})

	Describe("explicit subset grammar on the signal", func() {
		It("parses mixed explicit-range and wildcard dimensions", func() {
			rb, err := request.Parse("te[0:99:2, *]", "54321", environment, lookup)
			Expect(err).NotTo(HaveOccurred())
			Expect(rb.ExpNumber).To(Equal(int64(54321)))
			Expect(rb.Signal).To(Equal("te"))
			Expect(rb.Subset.Rank).To(Equal(2))
			Expect(rb.Subset.Start).To(Equal([]int64{0, 0}))
			Expect(rb.Subset.Stop).To(Equal([]int64{99, -1}))
			Expect(rb.Subset.Stride).To(Equal([]int64{2, 1}))
			Expect(rb.Subset.Count).To(Equal([]int64{50, -1}))
		})
	})

	Describe("server-class plugin with a slash-separated tail", func() {
		It("splits host/tree/shot and leaves the signal unchanged", func() {
			rb, err := request.Parse(`\mag`, "MDS+::server.example.org/tree/77", environment, lookup)
			Expect(err).NotTo(HaveOccurred())
			Expect(rb.PluginID).To(Equal(wire.PluginMDS))
			Expect(rb.Server).To(Equal("server.example.org"))
			Expect(rb.File).To(Equal("tree"))
			Expect(rb.ExpNumber).To(Equal(int64(77)))
			Expect(rb.Signal).To(Equal(`\mag`))
		})
	})

	Describe("archive prefix on the signal", func() {
		It("detaches a non-default ARCHIVE:: prefix from the signal", func() {
			rb, err := request.Parse("magnetics::ip", "12345", environment, lookup)
			Expect(err).NotTo(HaveOccurred())
			Expect(rb.Archive).To(Equal("magnetics"))
			Expect(rb.Signal).To(Equal("ip"))
		})

		It("discards a prefix matching the default archive instead of keeping it", func() {
			rb, err := request.Parse("mast::ip", "12345", environment, lookup)
			Expect(err).NotTo(HaveOccurred())
			Expect(rb.Archive).To(Equal("mast"))
			Expect(rb.Signal).To(Equal("ip"))
		})

		It("does not mistake a subset expression's internal delimiter for an archive prefix", func() {
			rb, err := request.Parse("te[0::5]", "54321", environment, lookup)
			Expect(err).NotTo(HaveOccurred())
			Expect(rb.Archive).To(Equal("mast")) // untouched: still the environment default
			Expect(rb.Signal).To(Equal("te"))
			Expect(rb.Subset.Rank).To(Equal(1))
		})
	})

	Describe("device indirection rewrites the source via the device's protocol/host/port", func() {
		It("resolves through the declared server protocol rather than recursing on the raw tail", func() {
			rb, err := request.Parse(`\ip`, "DIII::mytree/12345", environment, lookup)
			Expect(err).NotTo(HaveOccurred())
			Expect(rb.PluginID).To(Equal(wire.PluginMDS))
			Expect(rb.Server).To(Equal("diii-server:8000"))
			Expect(rb.File).To(Equal("mytree"))
			Expect(rb.ExpNumber).To(Equal(int64(12345)))
		})
	})

	Describe("device-prefixed library function on the default device", func() {
		It("discards the default device prefix and resolves the LIBRARY::function() form", func() {
			environment.DefaultDevice = "MAST"
			rb, err := request.Parse("", "MAST::HELP::ping()", environment, lookup)
			Expect(err).NotTo(HaveOccurred())
			Expect(rb.PluginID).To(Equal(wire.PluginFunction))
			Expect(rb.Function).To(Equal("ping"))
		})
	})

	Describe("device indirection beyond the configured depth", func() {
		It("fails with RequestDepthExceeded", func() {
			chained := "MAST::MAST::MAST::MAST::MAST::MAST::MAST::MAST::MAST::MAST::MAST::MAST::12345"
			_, err := request.Parse("ip", chained, environment, lookup)
			Expect(err).To(HaveOccurred())
			Expect(request.Is(err, request.RequestDepthExceeded)).To(BeTrue())
		})
	})

	Describe("proxy configured", func() {
		It("short-circuits to PluginForwardToPeer regardless of source shape", func() {
			environment.Proxy = "uda-proxy.example.org"
			rb, err := request.Parse("ip", "12345", environment, lookup)
			Expect(err).NotTo(HaveOccurred())
			Expect(rb.PluginID).To(Equal(wire.PluginForwardToPeer))
			Expect(rb.Server).To(Equal("uda-proxy.example.org"))
			Expect(rb.Source).To(Equal("12345"))
		})
	})

	Describe("empty request", func() {
		It("fails with EmptyRequest", func() {
			_, err := request.Parse("   ", "", environment, lookup)
			Expect(err).To(HaveOccurred())
			Expect(request.Is(err, request.EmptyRequest)).To(BeTrue())
		})
	})
})
