package archive_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/san-kum/odeviz/internal/archive"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)}
}

func sineResults() archive.Document {
	return archive.Document{
		"success":  true,
		"y_values": []float64{0.0, 0.8415, 0.9093, 0.1411, -0.7568},
		"t_values": []float64{0.0, 1.0, 2.0, 3.0, 4.0},
		"equation": "sin(t)",
	}
}

func simulation(name, eqType string, tags ...string) archive.Simulation {
	return archive.Simulation{
		EquationType:      eqType,
		Parameters:        archive.Document{"omega": 1.0},
		InitialConditions: []float64{0.0, 1.0},
		TimeRange:         [2]float64{0, 10},
		Results:           sineResults(),
		Name:              name,
		Tags:              tags,
		Description:       "test run",
	}
}

func names(sums []archive.Summary) []string {
	out := make([]string, len(sums))
	for i, s := range sums {
		out[i] = s.Name
	}
	return out
}

// blockWrites makes the next durable write fail by occupying the temp path
// with a non-empty directory; this works regardless of the test user's
// permissions.
func blockWrites(path string) func() {
	tmp := path + ".tmp"
	Expect(os.MkdirAll(filepath.Join(tmp, "occupied"), 0755)).To(Succeed())
	return func() { Expect(os.RemoveAll(tmp)).To(Succeed()) }
}

var _ = Describe("Store", func() {
	var (
		dir   string
		path  string
		clock *fakeClock
		st    *archive.Store
	)

	open := func() *archive.Store {
		return archive.Open(path, archive.WithClock(clock.Now))
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		path = filepath.Join(dir, "data", "simulations.json")
		clock = newClock()
		st = open()
	})

	Describe("Open", func() {
		It("starts fresh when no file exists", func() {
			Expect(st.LoadReport().Status).To(Equal(archive.LoadFresh))
			Expect(st.List(archive.ListOptions{})).To(BeEmpty())
			Expect(filepath.Join(dir, "data")).To(BeADirectory())
		})

		It("recovers from a corrupt file and keeps it aside", func() {
			Expect(os.WriteFile(path, []byte("{not json"), 0644)).To(Succeed())

			core, logs := observer.New(zapcore.WarnLevel)
			recovered := archive.Open(path, archive.WithClock(clock.Now), archive.WithLogger(zap.New(core)))

			report := recovered.LoadReport()
			Expect(report.Status).To(Equal(archive.LoadRecovered))
			Expect(report.Reason).To(HaveOccurred())
			Expect(report.Quarantine).To(BeARegularFile())
			Expect(recovered.Statistics().TotalSimulations).To(BeZero())
			Expect(logs.FilterMessage("archive unreadable, starting empty").Len()).To(Equal(1))

			id, err := recovered.Save(simulation("after", "harmonic"))
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal(int64(1)))
		})

		It("keeps last_id ahead of stored ids", func() {
			doc := `{"simulations":[{"id":7,"metadata":{"id":7,"name":"x"},"results":{},"saved_at":""}],
				"metadata":{"created_at":"2024-01-01T00:00:00.000000","last_id":2,"total_simulations":9,"updated_at":""}}`
			Expect(os.WriteFile(path, []byte(doc), 0644)).To(Succeed())

			loaded := open()
			Expect(loaded.LoadReport().Status).To(Equal(archive.LoadLoaded))
			Expect(loaded.Statistics().TotalSimulations).To(Equal(1))

			id, err := loaded.Save(simulation("next", "harmonic"))
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal(int64(8)))
		})

		It("rewrites a repaired file on close", func() {
			doc := `{"simulations":[{"id":4,"metadata":{"id":4,"name":"x"},"results":{},"saved_at":""}],
				"metadata":{"created_at":"","last_id":1,"total_simulations":1,"updated_at":""}}`
			Expect(os.WriteFile(path, []byte(doc), 0644)).To(Succeed())

			Expect(open().Close()).To(Succeed())

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`"last_id": 4`))
		})
	})

	Describe("Save", func() {
		It("assigns strictly increasing ids", func() {
			var last int64
			for i := 0; i < 5; i++ {
				id, err := st.Save(simulation("", "harmonic"))
				Expect(err).NotTo(HaveOccurred())
				Expect(id).To(BeNumerically(">", last))
				last = id
			}
		})

		It("never reuses the id of a deleted record", func() {
			first, _ := st.Save(simulation("a", "harmonic"))
			second, _ := st.Save(simulation("b", "harmonic"))
			Expect(st.Delete(second)).To(Succeed())

			third, err := st.Save(simulation("c", "harmonic"))
			Expect(err).NotTo(HaveOccurred())
			Expect(third).To(Equal(second + 1))
			Expect(first).To(Equal(int64(1)))
		})

		It("computes summary statistics from y_values", func() {
			id, err := st.Save(simulation("stats", "harmonic"))
			Expect(err).NotTo(HaveOccurred())

			rec, err := st.Get(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Metadata.PointsCount).To(Equal(5))
			Expect(rec.Metadata.MaxValue).To(BeNumerically("~", 0.9093, 1e-9))
			Expect(rec.Metadata.MinValue).To(BeNumerically("~", -0.7568, 1e-9))
			Expect(rec.Metadata.Amplitude).To(BeNumerically("~", 0.83305, 1e-9))
		})

		It("saves malformed results with zero statistics", func() {
			sim := simulation("broken", "custom")
			sim.Results = archive.Document{"success": false, "y_values": []any{"a", 1.0}}

			id, err := st.Save(sim)
			Expect(err).NotTo(HaveOccurred())

			rec, _ := st.Get(id)
			Expect(rec.Metadata.PointsCount).To(BeZero())
			Expect(rec.Metadata.Amplitude).To(BeZero())
			Expect(rec.Results["y_values"]).To(HaveLen(2))
		})

		It("generates a name from the id and time of day", func() {
			id, err := st.Save(simulation("", "harmonic"))
			Expect(err).NotTo(HaveOccurred())

			rec, _ := st.Get(id)
			Expect(rec.Metadata.Name).To(MatchRegexp(`^Sim_1_\d{6}$`))
		})

		It("does not consume the id when the durable write fails", func() {
			unblock := blockWrites(path)
			_, err := st.Save(simulation("lost", "harmonic"))
			Expect(err).To(MatchError(archive.ErrPersist))
			Expect(st.Statistics().TotalSimulations).To(BeZero())
			Expect(st.Statistics().LastID).To(BeZero())
			unblock()

			id, err := st.Save(simulation("kept", "harmonic"))
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal(int64(1)))
			Expect(names(st.List(archive.ListOptions{}))).To(Equal([]string{"kept"}))
		})

		It("is durable across a reopen", func() {
			id, err := st.Save(simulation("durable", "damped", "x", "y"))
			Expect(err).NotTo(HaveOccurred())
			want, _ := st.Get(id)

			reopened := open()
			Expect(reopened.LoadReport().Status).To(Equal(archive.LoadLoaded))
			got, err := reopened.Get(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(cmp.Diff(want, got)).To(BeEmpty())
		})

		It("keeps integers beyond float64 precision digit for digit", func() {
			sim := simulation("seeded", "harmonic")
			sim.Results = archive.Document{
				"seed":     json.Number("9007199254740993"),
				"y_values": []any{1, 2.5},
			}

			id, err := st.Save(sim)
			Expect(err).NotTo(HaveOccurred())

			got, err := open().Get(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Results["seed"]).To(Equal(json.Number("9007199254740993")))
			Expect(got.Results["y_values"]).To(Equal([]any{1.0, 2.5}))
			Expect(got.Metadata.PointsCount).To(Equal(2))

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`"seed": 9007199254740993`))
		})

		It("leaves no temp file behind", func() {
			_, err := st.Save(simulation("clean", "harmonic"))
			Expect(err).NotTo(HaveOccurred())
			Expect(path + ".tmp").NotTo(BeAnExistingFile())
		})

		It("writes non-ASCII text literally", func() {
			_, err := st.Save(simulation("ТЕСТ <ω>", "harmonic"))
			Expect(err).NotTo(HaveOccurred())

			raw, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(raw)).To(ContainSubstring("ТЕСТ <ω>"))
			Expect(string(raw)).To(ContainSubstring("\n  \"simulations\": ["))
		})

		It("serializes concurrent saves", func() {
			var wg sync.WaitGroup
			ids := make(chan int64, 20)
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					id, err := st.Save(simulation("", "harmonic"))
					Expect(err).NotTo(HaveOccurred())
					ids <- id
				}()
			}
			wg.Wait()
			close(ids)

			seen := map[int64]bool{}
			for id := range ids {
				Expect(seen).NotTo(HaveKey(id))
				seen[id] = true
			}
			Expect(seen).To(HaveLen(20))
			Expect(open().Statistics().TotalSimulations).To(Equal(20))
		})
	})

	Describe("Get", func() {
		It("reports unknown ids", func() {
			_, err := st.Get(42)
			Expect(err).To(MatchError(archive.ErrNotFound))
		})

		It("returns a copy", func() {
			id, _ := st.Save(simulation("copy", "harmonic", "t"))
			rec, _ := st.Get(id)
			rec.Metadata.Tags[0] = "mutated"
			rec.Results["success"] = false

			again, _ := st.Get(id)
			Expect(again.Metadata.Tags).To(Equal([]string{"t"}))
			Expect(again.Results["success"]).To(BeTrue())
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			for _, n := range []string{"beta", "Alpha", "gamma"} {
				_, err := st.Save(simulation(n, "harmonic"))
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("sorts by name case-insensitively", func() {
			got := st.List(archive.ListOptions{SortBy: archive.SortByName})
			Expect(names(got)).To(Equal([]string{"Alpha", "beta", "gamma"}))
		})

		It("sorts by creation time descending and truncates", func() {
			got := st.List(archive.ListOptions{SortBy: archive.SortByCreatedAt, Descending: true, Limit: 2})
			Expect(names(got)).To(Equal([]string{"gamma", "Alpha"}))
		})

		It("falls back to id for unknown keys", func() {
			got := st.List(archive.ListOptions{SortBy: "bogus"})
			Expect(names(got)).To(Equal([]string{"beta", "Alpha", "gamma"}))
		})

		It("keeps insertion order among tied amplitudes", func() {
			flat := simulation("flat", "harmonic")
			flat.Results = archive.Document{"y_values": []float64{1, 1}}
			_, err := st.Save(flat)
			Expect(err).NotTo(HaveOccurred())

			asc := st.List(archive.ListOptions{SortBy: archive.SortByAmplitude})
			Expect(names(asc)).To(Equal([]string{"flat", "beta", "Alpha", "gamma"}))

			desc := st.List(archive.ListOptions{SortBy: archive.SortByAmplitude, Descending: true})
			Expect(names(desc)).To(Equal([]string{"beta", "Alpha", "gamma", "flat"}))
		})
	})

	Describe("Search", func() {
		It("filters by equation type in insertion order", func() {
			for _, s := range []archive.Simulation{
				simulation("A", "harmonic"),
				simulation("B", "damped"),
				simulation("C", "harmonic"),
			} {
				_, err := st.Save(s)
				Expect(err).NotTo(HaveOccurred())
			}

			got := st.Search(archive.SearchQuery{EquationType: "harmonic"})
			Expect(names(got)).To(Equal([]string{"A", "C"}))
		})

		It("matches any of the requested tags", func() {
			st.Save(simulation("only-a", "harmonic", "a"))
			st.Save(simulation("only-b", "harmonic", "b"))
			st.Save(simulation("both", "harmonic", "a", "b"))
			st.Save(simulation("neither", "harmonic", "c"))

			got := st.Search(archive.SearchQuery{Tags: []string{"a", "b"}})
			Expect(names(got)).To(Equal([]string{"only-a", "only-b", "both"}))
		})

		It("matches names case-insensitively and combines filters", func() {
			st.Save(simulation("Pendulum Long", "damped", "x"))
			st.Save(simulation("pendulum short", "harmonic", "x"))
			st.Save(simulation("spring", "damped", "x"))

			got := st.Search(archive.SearchQuery{NameContains: "PENDULUM", EquationType: "damped"})
			Expect(names(got)).To(Equal([]string{"Pendulum Long"}))
			Expect(st.Search(archive.SearchQuery{})).To(HaveLen(3))
		})
	})

	Describe("Delete", func() {
		It("rejects unknown ids without touching metadata", func() {
			st.Save(simulation("a", "harmonic"))
			before := st.Statistics()

			Expect(st.Delete(99)).To(MatchError(archive.ErrNotFound))
			after := st.Statistics()
			Expect(after.TotalSimulations).To(Equal(before.TotalSimulations))
			Expect(after.UpdatedAt).To(Equal(before.UpdatedAt))
		})

		It("removes exactly one record", func() {
			a, _ := st.Save(simulation("a", "harmonic"))
			b, _ := st.Save(simulation("b", "harmonic"))

			Expect(st.Delete(a)).To(Succeed())
			Expect(st.Statistics().TotalSimulations).To(Equal(1))
			_, err := st.Get(a)
			Expect(err).To(MatchError(archive.ErrNotFound))
			_, err = open().Get(b)
			Expect(err).NotTo(HaveOccurred())
		})

		It("restores the record when the write fails", func() {
			a, _ := st.Save(simulation("a", "harmonic"))
			unblock := blockWrites(path)
			defer unblock()

			Expect(st.Delete(a)).To(MatchError(archive.ErrPersist))
			_, err := st.Get(a)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Statistics().TotalSimulations).To(Equal(1))
		})
	})

	Describe("Tags", func() {
		It("counts tags, most used first, ties in encounter order", func() {
			st.Save(simulation("1", "harmonic", "z", "test"))
			st.Save(simulation("2", "harmonic", "test", "y"))
			st.Save(simulation("3", "harmonic", "y"))

			Expect(st.Tags()).To(Equal([]archive.TagCount{
				{Name: "test", Count: 2},
				{Name: "y", Count: 2},
				{Name: "z", Count: 1},
			}))
		})
	})

	Describe("Statistics", func() {
		It("reports file and histogram details", func() {
			st.Save(simulation("a", "harmonic"))
			st.Save(simulation("b", "damped"))
			st.Save(simulation("c", "harmonic"))

			stats := st.Statistics()
			Expect(stats.TotalSimulations).To(Equal(3))
			Expect(stats.LastID).To(Equal(int64(3)))
			Expect(stats.FileExists).To(BeTrue())
			Expect(stats.FileSizeBytes).To(BeNumerically(">", 0))
			Expect(stats.Path).To(Equal(path))
			Expect(stats.EquationTypes).To(Equal(map[string]int{"harmonic": 2, "damped": 1}))
			Expect(stats.CompressionRatio).To(BeNumerically("<", 1))
		})
	})

	Describe("Export and Import", func() {
		It("round-trips a record into an empty store", func() {
			id, err := st.Save(simulation("orig", "forced", "a", "b"))
			Expect(err).NotTo(HaveOccurred())
			orig, _ := st.Get(id)

			out := filepath.Join(dir, "export.json")
			Expect(st.Export(id, out)).To(Succeed())

			other := archive.Open(filepath.Join(dir, "other.json"), archive.WithClock(clock.Now))
			other.Save(simulation("filler", "harmonic"))
			other.Save(simulation("filler", "harmonic"))
			newID, err := other.Import(out)
			Expect(err).NotTo(HaveOccurred())
			Expect(newID).NotTo(Equal(id))

			got, _ := other.Get(newID)
			Expect(cmp.Diff(orig.Results, got.Results)).To(BeEmpty())
			Expect(got.Metadata.EquationType).To(Equal("forced"))
			Expect(got.Metadata.Parameters).To(Equal(orig.Metadata.Parameters))
			Expect(got.Metadata.InitialConditions).To(Equal(orig.Metadata.InitialConditions))
			Expect(got.Metadata.TimeRange).To(Equal(orig.Metadata.TimeRange))
			Expect(got.Metadata.Tags).To(ConsistOf("a", "b"))
			Expect(got.Metadata.Name).To(Equal("orig_imported"))
			Expect(got.Metadata.Description).To(Equal("Imported: test run"))
		})

		It("imports large integers without rounding", func() {
			src := filepath.Join(dir, "seeded.json")
			Expect(os.WriteFile(src, []byte(`{"metadata": {"name": "s"}, "results": {"seed": 9007199254740993, "y_values": [3, 1]}}`), 0644)).To(Succeed())

			id, err := st.Import(src)
			Expect(err).NotTo(HaveOccurred())
			got, _ := st.Get(id)
			Expect(got.Results["seed"]).To(Equal(json.Number("9007199254740993")))
			Expect(got.Metadata.Amplitude).To(Equal(1.0))
		})

		It("exports the record verbatim", func() {
			id, _ := st.Save(simulation("verbatim", "harmonic"))
			out := filepath.Join(dir, "one.json")
			Expect(st.Export(id, out)).To(Succeed())

			raw, err := os.ReadFile(out)
			Expect(err).NotTo(HaveOccurred())
			var rec archive.Record
			Expect(json.Unmarshal(raw, &rec)).To(Succeed())
			want, _ := st.Get(id)
			Expect(cmp.Diff(*want, rec)).To(BeEmpty())
		})

		It("fails to export unknown ids", func() {
			Expect(st.Export(5, filepath.Join(dir, "x.json"))).To(MatchError(archive.ErrNotFound))
		})

		It("rejects payloads without metadata or results", func() {
			for _, body := range []string{
				`{"results": {"y_values": [1]}}`,
				`{"metadata": {"name": "x"}}`,
				`{"metadata": null, "results": {}}`,
				`[1, 2, 3]`,
			} {
				src := filepath.Join(dir, "bad.json")
				Expect(os.WriteFile(src, []byte(body), 0644)).To(Succeed())
				_, err := st.Import(src)
				Expect(err).To(MatchError(archive.ErrInvalidImport), body)
			}
			Expect(st.Statistics().LastID).To(BeZero())
			Expect(path).NotTo(BeAnExistingFile())
		})

		It("defaults a missing name and time range", func() {
			src := filepath.Join(dir, "minimal.json")
			Expect(os.WriteFile(src, []byte(`{"metadata": {}, "results": {"y_values": [2, -2]}}`), 0644)).To(Succeed())

			id, err := st.Import(src)
			Expect(err).NotTo(HaveOccurred())
			rec, _ := st.Get(id)
			Expect(rec.Metadata.Name).To(Equal("Imported_imported"))
			Expect(rec.Metadata.TimeRange).To(Equal([2]float64{0, 10}))
			Expect(rec.Metadata.Amplitude).To(Equal(2.0))
			Expect(strings.HasPrefix(rec.Metadata.Description, "Imported: ")).To(BeTrue())
		})
	})

	Describe("Close", func() {
		It("persists and rejects further mutations", func() {
			Expect(st.Close()).To(Succeed())
			Expect(path).To(BeARegularFile())

			_, err := st.Save(simulation("late", "harmonic"))
			Expect(err).To(MatchError(archive.ErrClosed))
			Expect(st.Close()).To(Succeed())
		})

		It("serves no data once closed", func() {
			_, err := st.Save(simulation("gone", "harmonic", "t"))
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Close()).To(Succeed())

			Expect(st.List(archive.ListOptions{})).To(BeEmpty())
			Expect(st.Search(archive.SearchQuery{Tags: []string{"t"}})).To(BeEmpty())
			Expect(st.Tags()).To(BeEmpty())
			Expect(st.Statistics().TotalSimulations).To(BeZero())
			_, err = st.Get(1)
			Expect(err).To(MatchError(archive.ErrClosed))
		})

		It("does not rewrite a file that only served reads", func() {
			_, err := st.Save(simulation("kept", "harmonic"))
			Expect(err).NotTo(HaveOccurred())

			reader := open()
			Expect(reader.List(archive.ListOptions{})).To(HaveLen(1))
			unblock := blockWrites(path)
			defer unblock()
			Expect(reader.Close()).To(Succeed())
		})
	})
})
