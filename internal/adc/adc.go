// Package adc reads raw samples from an IIO analog channel exposed in sysfs,
// e.g. /sys/bus/iio/devices/iio:device0/in_voltage0_raw.
package adc

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Reader returns one raw conversion.
type Reader interface {
	ReadRaw() (int, error)
}

type SysfsReader struct {
	Path string
}

func NewSysfsReader(path string) *SysfsReader {
	return &SysfsReader{Path: path}
}

func (r *SysfsReader) ReadRaw() (int, error) {
	return readRawFile(r.Path)
}

// readRawFile is a var so tests can stub the filesystem.
var readRawFile = func(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read adc %s: %w", path, err)
	}
	raw, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse adc %s: %w", path, err)
	}
	return raw, nil
}

// FakeReader replays scripted samples, repeating the last one.
type FakeReader struct {
	mu      sync.Mutex
	Samples []int
	Err     error
	index   int
	Reads   int
}

func NewFakeReader(samples ...int) *FakeReader {
	return &FakeReader{Samples: samples}
}

func (f *FakeReader) ReadRaw() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reads++
	if f.Err != nil {
		return 0, f.Err
	}
	if len(f.Samples) == 0 {
		return 0, fmt.Errorf("no samples configured")
	}
	v := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return v, nil
}

// Set replaces the script with a constant sample.
func (f *FakeReader) Set(raw int) {
	f.mu.Lock()
	f.Samples = []int{raw}
	f.index = 0
	f.mu.Unlock()
}
