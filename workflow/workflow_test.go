package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/geofetch/s2fetch/catalog"
	"github.com/geofetch/s2fetch/common"
	"github.com/geofetch/s2fetch/downloader"
	"github.com/geofetch/s2fetch/processor"
	"github.com/geofetch/s2fetch/service"
	"github.com/geofetch/s2fetch/workflow"
	"github.com/go-spatial/geom"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

const footprintWKT = "POLYGON ((12.1 48.6, 12.4 48.6, 12.4 48.9, 12.1 48.9, 12.1 48.6))"

func testArea(prefix string) common.AreaOfInterest {
	area, err := catalog.NewArea(prefix, geom.Polygon{{{12, 48.5}, {12.5, 48.5}, {12.5, 49}, {12, 49}, {12, 48.5}}}, 0)
	Expect(err).NotTo(HaveOccurred())
	return area
}

func testRecord(id string, date time.Time) common.SceneRecord {
	return common.SceneRecord{
		SceneID:      id,
		Satellite:    id[0:3],
		Tile:         "32UQD",
		ProductURI:   fmt.Sprintf("%s_MSIL2A_%sT102559_N0509_R108_T32UQD_%sT131415.SAFE", id[0:3], date.Format("20060102"), date.Format("20060102")),
		Date:         date,
		FootprintWKT: footprintWKT,
		Assets: common.AssetURLs{
			TCI:      "https://example.com/" + id + "/TCI.tif",
			Metadata: "https://example.com/" + id + "/metadata.xml",
		},
	}
}

var _ = Describe("Workflow", func() {
	var (
		ctx      context.Context
		window   common.SearchWindow
		provider *MokeProvider
		fetcher  *MokeFetcher
		clipper  *MokeClipper
		store    *MokeStore
		wf       *workflow.Workflow
	)

	day1 := time.Date(2023, 6, 1, 10, 26, 31, 0, time.UTC)
	day2 := time.Date(2023, 6, 7, 10, 26, 29, 0, time.UTC)

	BeforeEach(func() {
		ctx = context.Background()
		window = common.SearchWindow{
			Start: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2023, 6, 10, 0, 0, 0, 0, time.UTC),
		}
		provider = &MokeProvider{scenes: []common.SceneRecord{
			testRecord("S2A_32UQD_20230601_0_L2A", day1),
			testRecord("S2B_32UQD_20230607_0_L2A", day2),
		}}
		fetcher = &MokeFetcher{workdir: os.TempDir(), metadata: []byte("<xml/>")}
		clipper = &MokeClipper{}
		store = &MokeStore{}
		wf = &workflow.Workflow{
			Catalog:    &catalog.Catalog{Provider: provider},
			Downloader: fetcher,
			Processor:  clipper,
			Store:      store,
			Config:     workflow.Config{AOIWorkers: 2, DlWorkers: 2},
		}
	})

	Describe("a successful run", func() {
		It("writes the artifacts of every area", func() {
			report, err := wf.Run(ctx, window, []common.AreaOfInterest{testArea("FieldA"), testArea("FieldB")})
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Failed()).To(BeFalse())
			Expect(report.AOIs).To(HaveLen(2))
			for _, aoi := range report.AOIs {
				Expect(aoi.Status).To(Equal(common.StatusDONE))
				Expect(aoi.Scenes).To(HaveLen(2))
			}
			Expect(store.objects).To(HaveKey("FieldA_S2A_32UQD_20230601_0_L2A_TCI.tif"))
			Expect(store.objects).To(HaveKey("FieldA_S2A_32UQD_20230601_0_L2A_metadata.xml"))
			Expect(store.objects).To(HaveKey("FieldB_S2B_32UQD_20230607_0_L2A_TCI.tif"))
			Expect(report.Artifacts()).To(HaveLen(4))
		})

		It("removes every scratch directory", func() {
			_, err := wf.Run(ctx, window, []common.AreaOfInterest{testArea("FieldA")})
			Expect(err).NotTo(HaveOccurred())
			Expect(fetcher.cleaned).To(Equal(2))
		})

		It("overwrites the artifacts of a previous run", func() {
			for i := 0; i < 2; i++ {
				_, err := wf.Run(ctx, window, []common.AreaOfInterest{testArea("FieldA")})
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(store.objects["FieldA_S2A_32UQD_20230601_0_L2A_TCI.tif"]).To(Equal(2))
		})
	})

	Describe("an empty result set", func() {
		It("is a success, not a failure", func() {
			provider.scenes = nil
			report, err := wf.Run(ctx, window, []common.AreaOfInterest{testArea("FieldA")})
			Expect(err).NotTo(HaveOccurred())
			Expect(report.AOIs[0].Status).To(Equal(common.StatusEMPTY))
			Expect(report.Failed()).To(BeFalse())
		})
	})

	Describe("an unusable output target", func() {
		It("aborts the run before any work", func() {
			store.validateErr = service.ErrOutputDirectory{Target: "/nowhere", Reason: "no such directory"}
			_, err := wf.Run(ctx, window, []common.AreaOfInterest{testArea("FieldA")})
			Expect(err).To(HaveOccurred())
			Expect(service.Fatal(err)).To(BeTrue())
			Expect(store.objects).To(BeEmpty())
		})
	})

	Describe("an unreachable catalog", func() {
		It("fails the area but not the sibling areas", func() {
			provider.err = errors.New("catalog unavailable")
			report, err := wf.Run(ctx, window, []common.AreaOfInterest{testArea("FieldA")})
			Expect(err).NotTo(HaveOccurred())
			Expect(report.AOIs[0].Status).To(Equal(common.StatusFAILED))
			Expect(report.Failed()).To(BeTrue())
		})
	})

	Describe("a scene that cannot be fetched", func() {
		It("is contained: the sibling scene is still written", func() {
			fetcher.errs = map[string]error{
				"S2A_32UQD_20230601_0_L2A": downloader.ErrAssetDownload{SceneID: "S2A_32UQD_20230601_0_L2A", Asset: "visual", Err: errors.New("410")},
			}
			report, err := wf.Run(ctx, window, []common.AreaOfInterest{testArea("FieldA")})
			Expect(err).NotTo(HaveOccurred())
			Expect(report.AOIs[0].Status).To(Equal(common.StatusFAILED))
			Expect(report.AOIs[0].Message).To(Equal("1/2 scenes failed"))
			Expect(report.AOIs[0].Scenes[0].Status).To(Equal(common.StatusFAILED))
			Expect(report.AOIs[0].Scenes[1].Status).To(Equal(common.StatusDONE))
			Expect(store.objects).To(HaveKey("FieldA_S2B_32UQD_20230607_0_L2A_TCI.tif"))
		})
	})

	Describe("a scene without a raster asset", func() {
		It("is skipped with a warning, the area succeeds", func() {
			fetcher.errs = map[string]error{
				"S2A_32UQD_20230601_0_L2A": downloader.ErrMissingAsset{SceneID: "S2A_32UQD_20230601_0_L2A", Asset: "visual"},
			}
			report, err := wf.Run(ctx, window, []common.AreaOfInterest{testArea("FieldA")})
			Expect(err).NotTo(HaveOccurred())
			Expect(report.AOIs[0].Status).To(Equal(common.StatusDONE))
			Expect(report.AOIs[0].Scenes[0].Status).To(Equal(common.StatusSKIPPED))
			Expect(report.AOIs[0].Scenes[1].Status).To(Equal(common.StatusDONE))
		})
	})

	Describe("an area of interest outside the raster", func() {
		It("fails the scene with the clip error", func() {
			clipper.errs = map[string]error{
				"S2B_32UQD_20230607_0_L2A": processor.ErrClipOutOfBounds{SceneID: "S2B_32UQD_20230607_0_L2A"},
			}
			report, err := wf.Run(ctx, window, []common.AreaOfInterest{testArea("FieldA")})
			Expect(err).NotTo(HaveOccurred())
			Expect(report.AOIs[0].Scenes[1].Status).To(Equal(common.StatusFAILED))
			Expect(report.AOIs[0].Scenes[1].Message).To(ContainSubstring("outside the raster"))
		})
	})

	Describe("a dry run", func() {
		It("lists the artifacts without writing anything", func() {
			wf.Config.DryRun = true
			report, err := wf.Run(ctx, window, []common.AreaOfInterest{testArea("FieldA")})
			Expect(err).NotTo(HaveOccurred())
			Expect(report.AOIs[0].Scenes[0].Raster).To(Equal("FieldA_S2A_32UQD_20230601_0_L2A_TCI.tif"))
			Expect(report.AOIs[0].Scenes[0].Status).To(Equal(common.StatusSKIPPED))
			Expect(store.objects).To(BeEmpty())
			Expect(fetcher.cleaned).To(Equal(0))
		})
	})
})
