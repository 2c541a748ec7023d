package core

import (
	"os"
	"runtime"
	"strconv"
)

// BenchThreadsEnvVar names the environment variable that sets the number of query threads in benchmarks.
const BenchThreadsEnvVar = "SSG_BENCH_NTRD"

func defaultWorkers() int {
	return runtime.NumCPU()
}

// Workers returns n when positive, otherwise the number of CPUs.
func Workers(n int) int {
	if n > 0 {
		return n
	}
	return defaultWorkers()
}

// BenchThreads reads SSG_BENCH_NTRD, falling back to the number of CPUs.
func BenchThreads() int {
	if s := os.Getenv(BenchThreadsEnvVar); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return defaultWorkers()
}
