package health

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"
)

const (
	defaultFailureThreshold = 3
	defaultCheckTimeout     = 2 * time.Second
)

// Service tracks the health of the application's dependencies
type Service struct {
	mu               sync.RWMutex
	entries          map[string]*DependencyHealth
	strategies       map[string]HealthCheckStrategy
	failureThreshold int
	checkTimeout     time.Duration
	now              func() time.Time
}

// NewService creates a new health service. A dependency is reported
// unhealthy after failureThreshold consecutive failed checks.
func NewService(failureThreshold int, checkTimeout time.Duration) *Service {
	if failureThreshold <= 0 {
		failureThreshold = defaultFailureThreshold
	}
	if checkTimeout <= 0 {
		checkTimeout = defaultCheckTimeout
	}

	return &Service{
		entries:          make(map[string]*DependencyHealth),
		strategies:       make(map[string]HealthCheckStrategy),
		failureThreshold: failureThreshold,
		checkTimeout:     checkTimeout,
		now:              time.Now,
	}
}

// Register adds a dependency. Critical dependencies decide the overall status.
func (s *Service) Register(strategy HealthCheckStrategy, critical bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := strategy.Name()
	s.strategies[name] = strategy
	s.entries[name] = &DependencyHealth{
		Name:     name,
		Critical: critical,
		Status:   StatusUnknown,
	}
	log.Printf("[HEALTH] Registered dependency %s (critical=%v)", name, critical)
}

// CheckAll probes every registered dependency concurrently
func (s *Service) CheckAll(ctx context.Context) {
	s.mu.RLock()
	names := make([]string, 0, len(s.strategies))
	for name := range s.strategies {
		names = append(names, name)
	}
	s.mu.RUnlock()

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			s.Check(ctx, name)
		}(name)
	}
	wg.Wait()
}

// Check probes one dependency and records the outcome
func (s *Service) Check(ctx context.Context, name string) error {
	s.mu.RLock()
	strategy, ok := s.strategies[name]
	entry := s.entries[name]
	var cooling bool
	if ok {
		cooling = entry.Status == StatusCooldown && s.now().Before(entry.CooldownUntil)
	}
	s.mu.RUnlock()

	if !ok {
		return errors.New("dependency not registered: " + name)
	}
	if cooling {
		return nil
	}

	checkCtx, cancel := context.WithTimeout(ctx, s.checkTimeout)
	defer cancel()

	start := time.Now()
	err := strategy.Check(checkCtx)
	latency := int(time.Since(start).Milliseconds())

	switch {
	case errors.Is(err, ErrNotConfigured):
		s.markUnknown(name)
	case err == nil:
		s.MarkHealthy(name, latency)
	case IsOverloadError(err.Error()):
		s.MarkUnhealthy(name, err.Error())
		s.SetCooldown(name, ParseCooldownDuration(err.Error()))
	default:
		s.MarkUnhealthy(name, err.Error())
	}
	return err
}

func (s *Service) markUnknown(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.entries[name]; ok {
		h.Status = StatusUnknown
		h.LastChecked = s.now()
	}
}

// MarkHealthy records a successful check
func (s *Service) MarkHealthy(name string, latencyMs int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, exists := s.entries[name]
	if !exists {
		return
	}

	wasUnhealthy := h.Status == StatusUnhealthy || h.Status == StatusCooldown
	now := s.now()
	h.Status = StatusHealthy
	h.FailureCount = 0
	h.LastError = ""
	h.LatencyMs = latencyMs
	h.LastSuccessAt = now
	h.LastChecked = now
	h.CooldownUntil = time.Time{}

	if wasUnhealthy {
		log.Printf("[HEALTH] %s recovered - now healthy", name)
	}
}

// MarkUnhealthy records a failure. After reaching the threshold the
// dependency is marked unhealthy.
func (s *Service) MarkUnhealthy(name string, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, exists := s.entries[name]
	if !exists {
		return
	}

	h.FailureCount++
	h.LastError = truncateStr(errMsg, 200)
	h.LastChecked = s.now()

	if h.FailureCount >= s.failureThreshold {
		h.Status = StatusUnhealthy
		log.Printf("[HEALTH] %s marked UNHEALTHY after %d failures: %s", name, h.FailureCount, h.LastError)
	} else {
		log.Printf("[HEALTH] %s failure %d/%d: %s", name, h.FailureCount, s.failureThreshold, h.LastError)
	}
}

// SetCooldown skips active checks of a dependency for duration
func (s *Service) SetCooldown(name string, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, exists := s.entries[name]
	if !exists {
		return
	}

	h.Status = StatusCooldown
	h.CooldownUntil = s.now().Add(duration)

	log.Printf("[HEALTH] %s in COOLDOWN until %s (reason: %s)",
		name, h.CooldownUntil.Format(time.RFC3339), truncateStr(h.LastError, 100))
}

// Healthy reports whether every critical dependency is healthy or unchecked
func (s *Service) Healthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, h := range s.entries {
		if !h.Critical {
			continue
		}
		if h.Status == StatusUnhealthy || h.Status == StatusCooldown {
			return false
		}
	}
	return true
}

// GetAll returns every dependency, ordered by name
func (s *Service) GetAll() []DependencyHealth {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]DependencyHealth, 0, len(s.entries))
	for _, h := range s.entries {
		result = append(result, *h)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// GetStatus returns a summary keyed by dependency name
func (s *Service) GetStatus() map[string]interface{} {
	deps := s.GetAll()

	counts := map[string]int{"healthy": 0, "unhealthy": 0, "cooldown": 0, "unknown": 0}
	byName := make(map[string]DependencyHealth, len(deps))
	for _, h := range deps {
		counts[string(h.Status)]++
		byName[h.Name] = h
	}

	status := StatusHealthy
	if !s.Healthy() {
		status = StatusUnhealthy
	}

	return map[string]interface{}{
		"status":       status,
		"counts":       counts,
		"dependencies": byName,
	}
}

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
