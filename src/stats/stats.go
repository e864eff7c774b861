// Package stats implements the cheap, always-compiled-in counters this
// tree's cache and frame packages use to report activity (adapted from
// the donor kernel's stats package; Cycles_t's cycle counting relied on
// a runtime.Rdtsc() only a patched Go runtime provides, which is not
// available here, so it is dropped and only the plain event counters
// survive).
package stats

import (
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
)

/// Enabled gates whether counters actually increment; it is off by
/// default, so hot paths pay no atomic-add cost, and nothing in this
/// tree turns it on.
var Enabled = false

/// Counter_t is a statistical counter, safe for concurrent Inc from
/// multiple goroutines.
type Counter_t int64

/// Inc increments the counter by one when stats collection is enabled.
func (c *Counter_t) Inc() {
	if Enabled {
		atomic.AddInt64((*int64)(c), 1)
	}
}

/// Add adds delta to the counter when stats collection is enabled.
func (c *Counter_t) Add(delta int64) {
	if Enabled {
		atomic.AddInt64((*int64)(c), delta)
	}
}

/// Get reads the counter's current value.
func (c *Counter_t) Get() int64 {
	return atomic.LoadInt64((*int64)(c))
}

/// Stats2String renders every Counter_t field of st (a struct, passed by
/// value or pointer) as a "name: value" line.
func Stats2String(st interface{}) string {
	v := reflect.ValueOf(st)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	s := ""
	for i := 0; i < v.NumField(); i++ {
		t := v.Field(i).Type().String()
		if strings.HasSuffix(t, "Counter_t") {
			n := v.Field(i).Interface().(Counter_t)
			s += "\n\t" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10)
		}
	}
	return s + "\n"
}
