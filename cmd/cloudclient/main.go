// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

// Program cloudclient is a command-line utility for interacting with remote
// objects, and for publishing a demonstration object.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/creachadair/taskgroup"
	"github.com/sendanor/cloudclient"
	"github.com/sendanor/cloudclient/handler"
	"github.com/sendanor/cloudclient/remotes"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

var flags struct {
	Config     string        `flag:"config,Configuration file path (YAML)"`
	LogLevel   string        `flag:"log-level,Log level (debug, info, warn, error)"`
	LogFormat  string        `flag:"log-format,Log format (console or json)"`
	MinDelay   time.Duration `flag:"min-delay,Minimum interval between long polls"`
	PreferWait time.Duration `flag:"prefer-wait,Server hold time requested for each long poll"`
}

var serveFlags struct {
	Path string        `flag:"path,default=/clock,Path at which to publish the object"`
	Tick time.Duration `flag:"tick,default=5s,Interval between clock ticks"`
}

// cfg is populated by the root Init from the environment and the flags.
var cfg *settings

func main() {
	root := &command.C{
		Name:  filepath.Base(os.Args[0]),
		Usage: "[flags] command [args...]",
		Help: `Utilities for interacting with remote objects.

Long polling parameters are read from the CLOUD_CLIENT_LONG_POLLING_MIN_DELAY
(milliseconds) and CLOUD_CLIENT_LONG_POLLING_PREFER_WAIT (seconds) environment
variables, then from the configuration file, then from flags.

The configuration file is YAML with these optional fields:

  min_delay:   500ms
  prefer_wait: 20s
  log_level:   info
  log_format:  console
`,
		SetFlags: command.Flags(flax.MustBind, &flags),
		Init: func(env *command.Env) error {
			s, err := loadSettings(flags.Config, cloudclient.ConfigFromEnv())
			if err != nil {
				return err
			}
			s.applyFlags()
			log, err := s.newLogger(os.Stderr)
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(log)
			cfg = s
			return nil
		},
		Commands: []*command.C{
			{
				Name:  "inspect",
				Usage: "<url>",
				Help:  "Fetch a remote object and print its type and data.",
				Run:   runInspect,
			},
			{
				Name:  "call",
				Usage: "<url> <method> [arg...]",
				Help: `Call a method of a remote object and print the result.

Each argument is parsed as JSON. An argument that is not valid JSON is
passed as a string.`,
				Run: runCall,
			},
			{
				Name:  "watch",
				Usage: "<url>",
				Help:  "Long poll a remote object and print each new state until interrupted.",
				Run:   runWatch,
			},
			{
				Name:     "serve",
				Usage:    "[addr]",
				Help:     "Publish a demonstration clock object over HTTP (default addr localhost:8080).",
				SetFlags: command.Flags(flax.MustBind, &serveFlags),
				Run:      runServe,
			},
			command.VersionCommand(),
			command.HelpCommand(nil),
		},
	}
	command.RunOrFail(root.NewEnv(nil).MergeFlags(true), os.Args[1:])
}

func runInspect(env *command.Env) error {
	if len(env.Args) != 1 {
		return env.Usagef("want exactly one URL")
	}
	inst, err := cloudclient.Resolve(env.Context(), env.Args[0], nil, cfg.options())
	if err != nil {
		return err
	}
	typ := inst.Type()
	out := cloudclient.NewObject()
	out.Set("ref", inst.Ref())
	out.Set("type", anySlice(typ.Chain()))
	out.Set("methods", anySlice(typ.Methods()))
	out.Set("data", inst.Snapshot())
	return printYAML(os.Stdout, out)
}

func runCall(env *command.Env) error {
	if len(env.Args) < 2 {
		return env.Usagef("missing URL or method name")
	}
	args := make([]any, len(env.Args)-2)
	for i, s := range env.Args[2:] {
		args[i] = parseArg(s)
	}
	inst, err := cloudclient.Resolve(env.Context(), env.Args[0], nil, cfg.options())
	if err != nil {
		return err
	}
	result, err := inst.Call(env.Context(), env.Args[1], args...)
	if err != nil {
		return err
	}
	return printYAML(os.Stdout, result)
}

func runWatch(env *command.Env) error {
	if len(env.Args) != 1 {
		return env.Usagef("want exactly one URL")
	}
	ctx, cancel := signal.NotifyContext(env.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var μ sync.Mutex
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	show := func(inst *cloudclient.Instance) {
		μ.Lock()
		defer μ.Unlock()
		if err := enc.Encode(toNode(inst.Snapshot())); err != nil {
			zap.L().Error("print update", zap.Error(err))
		}
	}

	opts := cfg.options()
	opts.EnableLongPolling = true
	opts.OnUpdate = show
	inst, err := cloudclient.Resolve(ctx, env.Args[0], nil, opts)
	if err != nil {
		return err
	}
	show(inst)
	<-ctx.Done()
	zap.L().Info("stopping; waiting for the pending poll")
	inst.Stop()
	inst.Wait()
	zap.L().Debug("client metrics", zap.String("metrics", cloudclient.Metrics().String()))
	return nil
}

func runServe(env *command.Env) error {
	addr := "localhost:8080"
	switch len(env.Args) {
	case 0:
	case 1:
		addr = env.Args[0]
	default:
		return env.Usagef("extra arguments after address: %q", env.Args[1:])
	}
	ctx, cancel := signal.NotifyContext(env.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log := zap.L().Named("serve")
	clock := newClock()
	srv := remotes.NewServer(log).Register(serveFlags.Path, clock)

	lst, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Info("serving", zap.String("addr", lst.Addr().String()), zap.String("path", serveFlags.Path))

	g := taskgroup.New(taskgroup.Trigger(cancel))
	g.Go(func() error { return runTicker(ctx, clock, serveFlags.Tick) })
	g.Go(func() error { return remotes.Serve(ctx, lst, srv) })
	return g.Wait()
}

// newClock returns the demonstration object published by serve.
func newClock() *remotes.Object {
	obj := remotes.NewObject("Clock", "Thing").
		Field("name", "clock").
		Field("started", time.Now().UTC().Format(time.RFC3339)).
		Field("ticks", 0)
	return obj.
		Method("getDate", nil, handler.Result(func(context.Context) time.Time {
			return time.Now()
		})).
		Method("echo", []string{"args"}, handler.ParamResult(func(_ context.Context, args []json.RawMessage) []json.RawMessage {
			return args
		})).
		Method("setName", []string{"name"}, handler.ParamError(func(_ context.Context, name string) error {
			if name == "" {
				return errors.New("empty name")
			}
			obj.Set("name", name)
			return nil
		}))
}

// runTicker advances the ticks field of obj every d until ctx ends.
func runTicker(ctx context.Context, obj *remotes.Object, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTicker(d)
	defer t.Stop()
	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			obj.Set("ticks", n)
		}
	}
}

// settings are the merged configuration of the command.
type settings struct {
	cloudclient.Config `yaml:",inline"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// loadSettings reads settings from the YAML file at path, starting from base.
// Fields absent from the file keep their values from base. If path == "",
// only base is used.
func loadSettings(path string, base cloudclient.Config) (*settings, error) {
	s := &settings{Config: base, LogLevel: "warn", LogFormat: "console"}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	return s, nil
}

// applyFlags overrides s with flags set on the command line.
func (s *settings) applyFlags() {
	if flags.LogLevel != "" {
		s.LogLevel = flags.LogLevel
	}
	if flags.LogFormat != "" {
		s.LogFormat = flags.LogFormat
	}
	if flags.MinDelay > 0 {
		s.MinDelay = flags.MinDelay
	}
	if flags.PreferWait > 0 {
		s.PreferWait = flags.PreferWait
	}
}

// newLogger constructs a logger writing to w per the settings.
func (s *settings) newLogger(w io.Writer) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", s.LogLevel)
	}
	var enc zapcore.Encoder
	switch strings.ToLower(s.LogFormat) {
	case "json":
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	case "console", "":
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	default:
		return nil, fmt.Errorf("invalid log format %q", s.LogFormat)
	}
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), level)), nil
}

func (s *settings) options() *cloudclient.Options {
	c := s.Config
	return &cloudclient.Options{Config: &c, Logger: zap.L().Named("cloudclient")}
}

// parseArg parses s as a JSON value, or returns s itself if it is not valid
// JSON.
func parseArg(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(toNode(v)); err != nil {
		return err
	}
	return enc.Close()
}

// toNode converts a decoded JSON value to a YAML node, preserving the key
// order of objects.
func toNode(v any) *yaml.Node {
	switch t := v.(type) {
	case *cloudclient.Object:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, key := range t.Keys() {
			val, _ := t.Get(key)
			n.Content = append(n.Content, scalar("!!str", key), toNode(val))
		}
		return n
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, e := range t {
			n.Content = append(n.Content, toNode(e))
		}
		return n
	case nil:
		return scalar("!!null", "null")
	case string:
		return scalar("!!str", t)
	case bool:
		return scalar("!!bool", fmt.Sprint(t))
	case json.Number:
		if _, err := t.Int64(); err == nil {
			return scalar("!!int", t.String())
		}
		return scalar("!!float", t.String())
	case time.Time:
		return scalar("!!timestamp", t.Format(time.RFC3339Nano))
	}
	var n yaml.Node
	if err := n.Encode(v); err != nil {
		return scalar("!!str", fmt.Sprint(v))
	}
	return &n
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}
