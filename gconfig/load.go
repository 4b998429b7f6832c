/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package gconfig

import (
	"os"
	"strings"

	"github.com/nabbar/goicorn/gerrors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvCmdArgs is the environment variable whose value is parsed as an extra
// shell-style argument line, the same role GUNICORN_CMD_ARGS plays: it sits
// between the config file and explicit command-line flags in precedence.
const EnvCmdArgs = "GOICORN_CMD_ARGS"

// Loader merges defaults, an optional config file, EnvCmdArgs and bound
// pflags into a Config, in that precedence order (low to high).
type Loader struct {
	v        *viper.Viper
	flags    *pflag.FlagSet
	filePath string
}

// NewLoader builds a Loader seeded with Default() and the given flag set,
// which the caller has already defined (see cmd/goicorn) and parsed once
// for --config to be readable before the rest of the merge happens.
func NewLoader(flags *pflag.FlagSet) *Loader {
	v := viper.New()
	v.SetConfigType("yaml")

	def := Default()
	v.SetDefault("app", def.App)
	v.SetDefault("bind", def.Bind)
	v.SetDefault("workers", def.Workers)
	v.SetDefault("worker_class", def.WorkerClass)
	v.SetDefault("threads", def.Threads)
	v.SetDefault("timeout", int64(def.Timeout))
	v.SetDefault("graceful_timeout", int64(def.GracefulTimeout))
	v.SetDefault("keep_alive", int64(def.KeepAlive))
	v.SetDefault("max_requests", def.MaxRequests)
	v.SetDefault("max_requests_jitter", def.MaxRequestsJitter)
	v.SetDefault("preload", def.Preload)
	v.SetDefault("reload", def.Reload)
	v.SetDefault("pid", def.PidFile)
	v.SetDefault("worker_tmp_dir", def.WorkerTmpDir)
	v.SetDefault("umask", def.Umask)
	v.SetDefault("daemon", def.Daemon)
	v.SetDefault("header_map", def.HeaderMap)
	v.SetDefault("limit_request_line", def.LimitRequestLine)
	v.SetDefault("limit_request_fields", def.LimitRequestFields)
	v.SetDefault("limit_request_field_size", def.LimitRequestFieldSize)
	v.SetDefault("log_level", def.LogLevel)

	v.SetEnvPrefix("GOICORN")
	v.AutomaticEnv()

	return &Loader{v: v, flags: flags}
}

// SetConfigFile points the loader at an explicit file path (--config).
func (l *Loader) SetConfigFile(path string) {
	l.filePath = path
	l.v.SetConfigFile(path)
}

// Load runs the full merge: file, then GOICORN_CMD_ARGS, then flags.
func (l *Loader) Load() (*Config, error) {
	if l.filePath != "" {
		if err := l.v.ReadInConfig(); err != nil {
			return nil, gerrors.New(ErrorFileRead.Uint16(), ErrorFileRead.Message(), err)
		}
	}

	if raw, ok := os.LookupEnv(EnvCmdArgs); ok && raw != "" {
		extra := pflag.NewFlagSet("cmd-args", pflag.ContinueOnError)
		extra.AddFlagSet(l.flags)

		if err := extra.Parse(splitCmdArgs(raw)); err != nil {
			return nil, gerrors.New(ErrorEnvParse.Uint16(), ErrorEnvParse.Message(), err)
		}

		if err := l.v.BindPFlags(extra); err != nil {
			return nil, gerrors.New(ErrorFlagBind.Uint16(), ErrorFlagBind.Message(), err)
		}
	}

	if l.flags != nil {
		// Flag names are hyphenated ("graceful-timeout") while Config's
		// keys use underscores ("graceful_timeout"); bind under the latter.
		var bindErr error
		l.flags.VisitAll(func(f *pflag.Flag) {
			if err := l.v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); err != nil && bindErr == nil {
				bindErr = err
			}
		})

		if bindErr != nil {
			return nil, gerrors.New(ErrorFlagBind.Uint16(), ErrorFlagBind.Message(), bindErr)
		}
	}

	cfg := Default()
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, gerrors.New(ErrorFileParse.Uint16(), ErrorFileParse.Message(), err)
	}

	return cfg, nil
}

// Raw exposes the underlying *viper.Viper for WatchConfig wiring.
func (l *Loader) Raw() *viper.Viper {
	return l.v
}

func splitCmdArgs(s string) []string {
	return strings.Fields(s)
}
