package kernel

// schedulerOptions holds configuration resolved at Scheduler construction.
type schedulerOptions struct {
	mlfqs          bool
	timerFreq      int
	logger         Logger
	metricsEnabled bool
}

// SchedulerOption configures a Scheduler instance.
type SchedulerOption interface {
	applyScheduler(*schedulerOptions) error
}

type schedulerOptionFunc struct {
	apply func(*schedulerOptions) error
}

func (o *schedulerOptionFunc) applyScheduler(opts *schedulerOptions) error {
	return o.apply(opts)
}

// WithMLFQS enables the multi-level feedback queue scheduler. When
// enabled, Scheduler.SetPriority becomes a no-op and priority is instead
// recomputed from recent_cpu/nice/load_avg.
func WithMLFQS(enabled bool) SchedulerOption {
	return &schedulerOptionFunc{func(opts *schedulerOptions) error {
		opts.mlfqs = enabled
		return nil
	}}
}

// WithTimerFrequency sets TIMER_FREQ, the tick source frequency in Hz.
// Constrained to [19, 1000]; out-of-range values are clamped.
func WithTimerFrequency(hz int) SchedulerOption {
	return &schedulerOptionFunc{func(opts *schedulerOptions) error {
		if hz < 19 {
			hz = 19
		}
		if hz > 1000 {
			hz = 1000
		}
		opts.timerFreq = hz
		return nil
	}}
}

// WithLogger attaches a structured Logger to the scheduler.
func WithLogger(logger Logger) SchedulerOption {
	return &schedulerOptionFunc{func(opts *schedulerOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMetrics enables SchedulerMetrics collection.
func WithMetrics(enabled bool) SchedulerOption {
	return &schedulerOptionFunc{func(opts *schedulerOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// resolveOptions applies SchedulerOption instances over the defaults.
func resolveOptions(opts []SchedulerOption) (*schedulerOptions, error) {
	cfg := &schedulerOptions{
		timerFreq: 100,
		logger:    NewNoOpLogger(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyScheduler(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
