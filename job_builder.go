package matchbatch

import (
	"fmt"
)

type JobBuilderFactory interface {
	Get(name string) JobBuilder
}

func NewJobBuilderFactory(repository Repository) JobBuilderFactory {
	return &jobBuilderFactory{repository: repository}
}

type jobBuilderFactory struct {
	repository Repository
}

func (f *jobBuilderFactory) Get(name string) JobBuilder {
	if name == "" {
		panic("job name must not be empty")
	}
	return &jobBuilder{name: name, repository: f.repository}
}

// JobBuilder starts a job definition with its first step.
type JobBuilder interface {
	Start(step Step) SimpleJobBuilder
}

type jobBuilder struct {
	name       string
	repository Repository
}

func (b *jobBuilder) Start(step Step) SimpleJobBuilder {
	return &simpleJobBuilder{name: b.name, steps: []Step{step}, repository: b.repository}
}

// SimpleJobBuilder collects the steps of a job, run in the order they are added.
type SimpleJobBuilder interface {
	Next(step Step) SimpleJobBuilder
	Steps(step ...Step) SimpleJobBuilder
	Listener(listener ...interface{}) SimpleJobBuilder
	Build() Job
}

type simpleJobBuilder struct {
	name          string
	steps         []Step
	jobListeners  []JobListener
	stepListeners []StepListener
	repository    Repository
}

func (b *simpleJobBuilder) Next(step Step) SimpleJobBuilder {
	return b.Steps(step)
}

func (b *simpleJobBuilder) Steps(step ...Step) SimpleJobBuilder {
	b.steps = append(b.steps, step...)
	return b
}

// Listener accepts JobListener and StepListener values. A value implementing
// both is registered as both; anything else panics.
func (b *simpleJobBuilder) Listener(listener ...interface{}) SimpleJobBuilder {
	for _, l := range listener {
		jl, isJob := l.(JobListener)
		sl, isStep := l.(StepListener)
		if !isJob && !isStep {
			panic(fmt.Sprintf("job:%v: %T is neither a JobListener nor a StepListener", b.name, l))
		}
		if isJob {
			b.jobListeners = append(b.jobListeners, jl)
		}
		if isStep {
			b.stepListeners = append(b.stepListeners, sl)
		}
	}
	return b
}

// Build panics when the job has no repository or two steps share a name,
// since step names key the persisted step executions.
func (b *simpleJobBuilder) Build() Job {
	if b.repository == nil {
		panic(fmt.Sprintf("job:%v has no repository", b.name))
	}
	seen := make(map[string]bool, len(b.steps))
	for _, step := range b.steps {
		if seen[step.Name()] {
			panic(fmt.Sprintf("job:%v has more than one step named %v", b.name, step.Name()))
		}
		seen[step.Name()] = true
		for _, sl := range b.stepListeners {
			step.addListener(sl)
		}
	}
	return newSimpleJob(b.name, b.steps, b.jobListeners, b.repository)
}
