package cache

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/marketplace-analytics/backend/internal/domain/sales"
)

// MemoryReportLocker implements sales.ReportLocker within one process.
// It is suitable for the single-file CLI and for tests.
type MemoryReportLocker struct {
	mu    sync.Mutex
	held  map[uuid.UUID]uint64
	token uint64
}

// NewMemoryReportLocker creates an empty locker
func NewMemoryReportLocker() *MemoryReportLocker {
	return &MemoryReportLocker{held: make(map[uuid.UUID]uint64)}
}

// Lock fails with sales.ErrReportLocked when the report is held
func (l *MemoryReportLocker) Lock(ctx context.Context, reportID uuid.UUID) (sales.ReportLock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[reportID]; ok {
		return nil, sales.ErrReportLocked
	}
	l.token++
	l.held[reportID] = l.token
	return &memoryReportLock{locker: l, reportID: reportID, token: l.token}, nil
}

// IsLocked reports whether the report is currently held
func (l *MemoryReportLocker) IsLocked(reportID uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[reportID]
	return ok
}

type memoryReportLock struct {
	locker   *MemoryReportLocker
	reportID uuid.UUID
	token    uint64
}

// Release frees the report. Releasing twice is a no-op.
func (h *memoryReportLock) Release(context.Context) error {
	h.locker.mu.Lock()
	defer h.locker.mu.Unlock()

	if h.locker.held[h.reportID] == h.token {
		delete(h.locker.held, h.reportID)
	}
	return nil
}

// Ensure MemoryReportLocker implements ReportLocker
var _ sales.ReportLocker = (*MemoryReportLocker)(nil)
