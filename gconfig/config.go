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

// Package gconfig loads and merges the arbiter's configuration from
// framework defaults, a config file, the GOICORN_CMD_ARGS environment
// variable and command-line flags, in that precedence order. Loader.Watch
// can report on-disk edits of the config file; the arbiter does not call
// it, and SIGHUP does not re-read the configuration.
package gconfig

import "time"

// Config is the fully merged, validated settings the arbiter starts from.
// A HUP reload respawns workers under the same Config; it is not re-read.
// Field names track the CLI flags of the same purpose one for one.
type Config struct {
	App string `mapstructure:"app" yaml:"app"`

	Bind               []string `mapstructure:"bind" yaml:"bind"`
	Workers            int      `mapstructure:"workers" yaml:"workers"`
	WorkerClass        string   `mapstructure:"worker_class" yaml:"worker_class"`
	Threads            int      `mapstructure:"threads" yaml:"threads"`
	Timeout            Duration `mapstructure:"timeout" yaml:"timeout"`
	GracefulTimeout    Duration `mapstructure:"graceful_timeout" yaml:"graceful_timeout"`
	KeepAlive          Duration `mapstructure:"keep_alive" yaml:"keep_alive"`
	MaxRequests        int      `mapstructure:"max_requests" yaml:"max_requests"`
	MaxRequestsJitter  int      `mapstructure:"max_requests_jitter" yaml:"max_requests_jitter"`
	Preload            bool     `mapstructure:"preload" yaml:"preload"`
	Reload             bool     `mapstructure:"reload" yaml:"reload"`
	PidFile            string   `mapstructure:"pid" yaml:"pid"`
	WorkerTmpDir       string   `mapstructure:"worker_tmp_dir" yaml:"worker_tmp_dir"`
	User               string   `mapstructure:"user" yaml:"user"`
	Group              string   `mapstructure:"group" yaml:"group"`
	Umask              string   `mapstructure:"umask" yaml:"umask"`
	Daemon             bool     `mapstructure:"daemon" yaml:"daemon"`
	Chdir              string   `mapstructure:"chdir" yaml:"chdir"`
	ForwardedAllowIPs  []string `mapstructure:"forwarded_allow_ips" yaml:"forwarded_allow_ips"`
	ForwarderHeaders   []string `mapstructure:"forwarder_headers" yaml:"forwarder_headers"`
	HeaderMap          string   `mapstructure:"header_map" yaml:"header_map"`
	LimitRequestLine   int      `mapstructure:"limit_request_line" yaml:"limit_request_line"`
	LimitRequestFields int      `mapstructure:"limit_request_fields" yaml:"limit_request_fields"`
	LimitRequestFieldSize int   `mapstructure:"limit_request_field_size" yaml:"limit_request_field_size"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	LogFile  string `mapstructure:"log_file" yaml:"log_file"`
}

// Duration is time.Duration with YAML/mapstructure support for both a
// plain integer of seconds and a Go duration string ("30s"), matching
// gunicorn's own acceptance of bare integers for its timeouts.
type Duration time.Duration

func (d Duration) AsDuration() time.Duration {
	return time.Duration(d)
}

// Default returns the framework defaults, the lowest precedence layer.
func Default() *Config {
	return &Config{
		Bind:                  []string{"127.0.0.1:8000"},
		Workers:               1,
		WorkerClass:           "sync",
		Threads:               1,
		Timeout:               Duration(30 * time.Second),
		GracefulTimeout:       Duration(30 * time.Second),
		KeepAlive:             Duration(2 * time.Second),
		MaxRequests:           0,
		MaxRequestsJitter:     0,
		Preload:               false,
		Reload:                false,
		PidFile:               "",
		WorkerTmpDir:          "",
		Umask:                 "0",
		Daemon:                false,
		HeaderMap:             "drop",
		LimitRequestLine:      4094,
		LimitRequestFields:    100,
		LimitRequestFieldSize: 8190,
		LogLevel:              "info",
	}
}
