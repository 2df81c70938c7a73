package drive

// SyncService produces the reconciliation view clients poll. A client stores
// the ServerTime from each response and passes it back as since on the next
// poll, receiving only records updated in between. Tombstones are included
// so deletions propagate.
type SyncService struct {
	index Index
	clock Clock
}

// NewSyncService creates a SyncService.
func NewSyncService(index Index, clock Clock) *SyncService {
	return &SyncService{index: index, clock: clock}
}

// GetSyncState returns the file index view at the current server time. A nil
// since returns the full state; otherwise only records with UpdatedAt after
// since are included.
func (s *SyncService) GetSyncState(since *int64) (*SyncState, error) {
	now := s.clock.Now().UnixMilli()

	files, err := s.index.ListFiles(since)
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []FileRecord{}
	}

	return &SyncState{ServerTime: now, Files: files}, nil
}
