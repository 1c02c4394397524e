// Package monitoring turns a running network into an HTTP server so that a
// simulation can be inspected and stopped from the outside.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/rs/xid"
	"github.com/sarchlab/stepsim/sim"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

// Monitor can turn a simulation into a server and allows external monitoring
// controlling of the simulation.
type Monitor struct {
	network    *sim.Network
	portNumber int
	profileFor time.Duration

	componentsLock sync.Mutex
	components     map[string]any

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	listener net.Listener
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		components: make(map[string]any),
		profileFor: time.Second,
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterNetwork registers the network that is used in the simulation.
func (m *Monitor) RegisterNetwork(n *sim.Network) {
	m.network = n
}

// RegisterComponent registers an object, such as a model, that can be
// inspected under the given name.
func (m *Monitor) RegisterComponent(name string, c any) {
	m.componentsLock.Lock()
	defer m.componentsLock.Unlock()

	m.components[name] = c
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// StartServer starts the monitor as a web server with a custom port if wanted.
func (m *Monitor) StartServer() {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	m.listener = listener

	fmt.Fprintf(
		os.Stderr,
		"Monitoring simulation with %s\n", m.URL())

	r := m.router()

	go func() {
		err := http.Serve(listener, r)
		dieOnErr(err)
	}()
}

// URL returns the address of the server. It is empty before StartServer is
// called.
func (m *Monitor) URL() string {
	if m.listener == nil {
		return ""
	}

	return fmt.Sprintf("http://localhost:%d",
		m.listener.Addr().(*net.TCPAddr).Port)
}

func (m *Monitor) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/status", m.status)
	r.HandleFunc("/api/stop", m.stop).Methods(http.MethodPost)
	r.HandleFunc("/api/list_clocks", m.listClocks)
	r.HandleFunc("/api/clock/{name}", m.clockDetails)
	r.HandleFunc("/api/list_components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.componentDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	return r
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	now := m.network.Now()
	fmt.Fprintf(w, "{\"now\":%.10f}", now)
}

type statusRsp struct {
	Running           bool    `json:"running"`
	StopRequested     bool    `json:"stop_requested"`
	LastRunTime       float64 `json:"last_run_time"`
	CompletedFraction float64 `json:"last_run_completed_fraction"`
}

func (m *Monitor) status(w http.ResponseWriter, _ *http.Request) {
	report := m.network.LastReport()

	rsp := statusRsp{
		Running:           m.network.IsRunning(),
		StopRequested:     m.network.StopRequested(),
		LastRunTime:       report.Elapsed.Seconds(),
		CompletedFraction: report.CompletedFraction,
	}

	writeJSON(w, rsp)
}

func (m *Monitor) stop(w http.ResponseWriter, _ *http.Request) {
	accepted := m.network.Stop()
	fmt.Fprintf(w, "{\"accepted\":%t}", accepted)
}

type clockRsp struct {
	Name string  `json:"name"`
	DT   float64 `json:"dt"`
	Step int64   `json:"step"`
	Now  float64 `json:"now"`
}

func (m *Monitor) listClocks(w http.ResponseWriter, _ *http.Request) {
	clocks := m.network.Clocks()

	rsp := make([]clockRsp, 0, len(clocks))
	for _, c := range clocks {
		rsp = append(rsp, clockRsp{
			Name: c.Name(),
			DT:   float64(c.DT()),
			Step: c.Step(),
			Now:  float64(c.CurrentTime()),
		})
	}

	writeJSON(w, rsp)
}

type clockDetailRsp struct {
	clockRsp

	Freq float64 `json:"freq"`
	Next float64 `json:"next"`

	// NetworkCycle counts the cycles of this clock up to the network's
	// time. It differs from Step when clocks tick at different rates.
	NetworkCycle uint64 `json:"network_cycle"`
}

func (m *Monitor) clockDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	for _, c := range m.network.Clocks() {
		if c.Name() != name {
			continue
		}

		dt := c.DT()
		rsp := clockDetailRsp{
			clockRsp: clockRsp{
				Name: c.Name(),
				DT:   float64(dt),
				Step: c.Step(),
				Now:  float64(c.CurrentTime()),
			},
			Next: float64(c.NextTime()),
		}

		if dt > 0 {
			freq := sim.FreqOf(dt)
			rsp.Freq = float64(freq)
			rsp.NetworkCycle = freq.Cycle(m.network.Now())
		}

		writeJSON(w, rsp)

		return
	}

	notFound(w, "Clock not found")
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	m.componentsLock.Lock()
	names := make([]string, 0, len(m.components))
	for name := range m.components {
		names = append(names, name)
	}
	m.componentsLock.Unlock()

	sort.Strings(names)

	writeJSON(w, names)
}

func (m *Monitor) componentDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if m.rejectWhileRunning(w) {
		return
	}

	component := m.findComponentOr404(w, name)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	jsonString := mux.Vars(r)["json"]
	req := fieldReq{}

	err := json.Unmarshal([]byte(jsonString), &req)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	if m.rejectWhileRunning(w) {
		return
	}

	component := m.findComponentOr404(w, req.CompName)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	err = serializer.Serialize(w)
	dieOnErr(err)
}

// rejectWhileRunning answers 409 during a run. Components are read by
// reflection, without their owners' locks, so they are only inspected
// between runs.
func (m *Monitor) rejectWhileRunning(w http.ResponseWriter) bool {
	if m.network == nil || !m.network.IsRunning() {
		return false
	}

	w.WriteHeader(http.StatusConflict)
	_, err := w.Write([]byte("Components cannot be inspected while running"))
	dieOnErr(err)

	return true
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	name string,
) any {
	m.componentsLock.Lock()
	component, ok := m.components[name]
	m.componentsLock.Unlock()

	if !ok {
		notFound(w, "Component not found")
		return nil
	}

	return component
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressBarRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	writeJSON(w, rsp)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	time.Sleep(m.profileFor)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func notFound(w http.ResponseWriter, msg string) {
	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte(msg))
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
