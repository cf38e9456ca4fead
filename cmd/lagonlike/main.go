package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ua-parser/uap-go/uaparser"
	"go.uber.org/zap"

	"lagonlike.dev"
)

func main() {
	wasm := flag.String("wasm", "", "wasm function to execute")
	bind := flag.String("bind", "localhost:5000", "address to bind to")
	verbosity := flag.Int("v", 0, "verbosity level (0, 1, 2)")
	timeout := flag.Duration("timeout", 50*time.Millisecond, "execution timeout per request (0 to disable)")

	envs := make(envFlags)
	flag.Var(&envs, "env", "<name=file.json> specifying environment stores. The JSON file supplied must only contain string values.")
	flag.Var(&envs, "e", "alias for -env")

	endpoints := make(endpointFlags)
	flag.Var(&endpoints, "log", "<name=file> or <name> specifying log endpoints. Use name=file to log to a file, or just name to log to stdout.")

	flag.Parse()

	if *wasm == "" {
		_, _ = fmt.Fprintf(flag.CommandLine.Output(), "-wasm argument is required\n")
		flag.Usage()
		os.Exit(1)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Printf("Error creating logger, got %s\n", err.Error())
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	opts := []lagonlike.Option{
		lagonlike.WithHost(&lagonlike.HTTPHost{Logs: os.Stdout}),
		lagonlike.WithExecutionTimeout(*timeout),
		lagonlike.WithVerbosity(*verbosity),
	}

	for name, env := range envs {
		opts = append(opts, lagonlike.WithEnvStore(name, env.fn))
	}

	for name, endpoint := range endpoints {
		opts = append(opts, lagonlike.WithLogEndpoint(name, endpoint.writer))
	}

	rt, err := lagonlike.NewFromWasmFile(*wasm, opts...)
	if err != nil {
		fmt.Printf("Error compiling %s, got %s\n", *wasm, err.Error())
		os.Exit(1)
	}

	logger.Info("listening", zap.String("bind", *bind), zap.String("wasm", *wasm))
	if err := http.ListenAndServe(*bind, accessLog(logger, rt)); err != nil {
		fmt.Printf("Error starting server, got %s\n", err.Error())
	}
}

// accessLog wraps next with a per-request structured log line carrying
// the request id, resolved status, elapsed time and the user agent
// family.
func accessLog(logger *zap.Logger, next http.Handler) http.Handler {
	parser := uaparser.NewFromSaved()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", rec.Header().Get("x-request-id")),
			zap.String("ua", parser.Parse(r.UserAgent()).UserAgent.Family),
		)
	})
}

// statusRecorder captures the status code written downstream so the
// access log can report it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// envEntry represents a configured environment store with its lookup function
type envEntry struct {
	name     string
	filename string
	fn       lagonlike.LookupFunc
}

// envFlags implements flag.Value for parsing -env flags
type envFlags map[string]envEntry

func (f *envFlags) String() string {
	results := make([]string, 0, len(*f))
	for name, env := range *f {
		results = append(results, fmt.Sprintf("%s=%s", name, env.filename))
	}
	return strings.Join(results, ", ")
}

func (f *envFlags) Set(v string) error {
	parts := strings.SplitN(v, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid env store %s specified, expected name=file.json", v)
	}

	name := parts[0]
	filename := parts[1]

	fd, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("error opening env store file %s, got %s", filename, err.Error())
	}
	defer fd.Close()

	content := map[string]string{}
	if err := json.NewDecoder(fd).Decode(&content); err != nil {
		return fmt.Errorf("error parsing env store file %s, got %s", filename, err.Error())
	}

	lookupFunc := func(key string) string {
		if value, exists := content[key]; exists {
			return value
		}
		return ""
	}

	(*f)[name] = envEntry{name: name, filename: filename, fn: lookupFunc}
	return nil
}

// endpointEntry represents a configured log endpoint
type endpointEntry struct {
	name     string
	filename string
	writer   *os.File
}

// endpointFlags implements flag.Value for parsing -log flags
type endpointFlags map[string]endpointEntry

func (f *endpointFlags) String() string {
	results := make([]string, 0, len(*f))
	for name, e := range *f {
		if e.filename != "" {
			results = append(results, fmt.Sprintf("%s=%s", name, e.filename))
		} else {
			results = append(results, name)
		}
	}
	return strings.Join(results, ", ")
}

func (f *endpointFlags) Set(v string) error {
	parts := strings.SplitN(v, "=", 2)
	name := parts[0]
	filename := ""
	var writer *os.File

	if len(parts) == 2 {
		filename = parts[1]
		fd, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("error opening log endpoint file %s, got %s", filename, err.Error())
		}
		writer = fd
	} else {
		writer = os.Stdout
	}

	(*f)[name] = endpointEntry{name: name, filename: filename, writer: writer}
	return nil
}
