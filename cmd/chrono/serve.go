package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/willibrandon/chronosparse/pkg/recorder"
	"github.com/willibrandon/chronosparse/pkg/replay"
)

const indexPage = `<!DOCTYPE html>
<html>
<head><title>chrono</title></head>
<body>
<h1>chrono trace</h1>
<ul>
<li><a href="/api/summary">summary</a></li>
<li><a href="/api/windows">windows</a></li>
<li><a href="/trace.json">trace.json</a> (open in chrome://tracing or ui.perfetto.dev)</li>
</ul>
</body>
</html>
`

type traceServer struct {
	summary *replay.Summary
	windows []*replay.Window
	chrome  *replay.ChromeTraceFile
}

func newTraceServer(events []recorder.Event) (*traceServer, error) {
	summary, err := replay.Summarize(events)
	if err != nil {
		return nil, err
	}
	windows, err := replay.BuildWindows(events)
	if err != nil {
		return nil, err
	}
	chrome, err := replay.ChromeTrace(events)
	if err != nil {
		return nil, err
	}

	return &traceServer{summary: summary, windows: windows, chrome: chrome}, nil
}

func (s *traceServer) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", s.index)
	r.HandleFunc("/api/summary", s.listSummary)
	r.HandleFunc("/api/windows", s.listWindows)
	r.HandleFunc("/api/windows/{pid:[0-9]+}/{id}", s.windowDetails)
	r.HandleFunc("/trace.json", s.chromeTrace)

	return r
}

func (s *traceServer) index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexPage)
}

func (s *traceServer) listSummary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.summary)
}

type windowInfo struct {
	ID    string `json:"id"`
	PID   int    `json:"pid"`
	Root  string `json:"root"`
	Calls int    `json:"calls"`
}

func (s *traceServer) listWindows(w http.ResponseWriter, _ *http.Request) {
	infos := make([]windowInfo, 0, len(s.windows))
	for _, win := range s.windows {
		infos = append(infos, windowInfo{
			ID:    win.ID,
			PID:   win.PID,
			Root:  win.Root.Name,
			Calls: win.Calls(),
		})
	}
	writeJSON(w, infos)
}

func (s *traceServer) windowDetails(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	pid, _ := strconv.Atoi(vars["pid"])

	for _, win := range s.windows {
		if win.PID == pid && win.ID == vars["id"] {
			writeJSON(w, win)
			return
		}
	}
	http.NotFound(w, r)
}

func (s *traceServer) chromeTrace(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.chrome)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(bytes)
}

func newServeCmd() *cobra.Command {
	var (
		addr string
		open bool
	)

	cmd := &cobra.Command{
		Use:   "serve TRACE",
		Short: "Serve a trace over HTTP.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := loadTrace(args[0])
			if err != nil {
				return err
			}
			s, err := newTraceServer(events)
			if err != nil {
				return err
			}

			listener, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}

			url := fmt.Sprintf("http://localhost:%d", listener.Addr().(*net.TCPAddr).Port)
			fmt.Fprintf(cmd.ErrOrStderr(), "Serving %s on %s\n", args[0], url)

			if open {
				if err := browser.OpenURL(url); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\n", err)
				}
			}

			srv := &http.Server{Handler: s.router()}
			go func() {
				<-cmd.Context().Done()
				srv.Close()
			}()

			if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:0", "Listen address")
	cmd.Flags().BoolVar(&open, "open", false, "Open the viewer in a browser")

	return cmd
}
