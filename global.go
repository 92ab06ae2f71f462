package matchbatch

import (
	"os"
)

var DefaultLogger Logger

// SetLogger set a logger instance for the whole module
func SetLogger(logger Logger) {
	DefaultLogger = logger
}

func init() {
	DefaultLogger = NewLogger(os.Stdout, Info)
}

// DefaultJobPoolSize default number of jobs that may run in parallel
const DefaultJobPoolSize = 10

var jobPool = newTaskPool(DefaultJobPoolSize)

// SetMaxRunningJobs set max number of parallel jobs
func SetMaxRunningJobs(size int) {
	jobPool.SetMaxSize(size)
}
