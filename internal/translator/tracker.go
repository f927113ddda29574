package translator

import "context"

// Tracker is told when a translate call starts and when it finishes.
type Tracker interface {
	Start()
	Done()
}

type trackedService struct {
	TranslationService
	tracker Tracker
}

// Track wraps svc so that tracker.Start is called before every Translate and
// tracker.Done after it, on every return path.
func Track(svc TranslationService, tracker Tracker) TranslationService {
	return &trackedService{TranslationService: svc, tracker: tracker}
}

func (s *trackedService) Translate(ctx context.Context, req TranslateRequest) (*ServiceResult, error) {
	s.tracker.Start()
	defer s.tracker.Done()
	return s.TranslationService.Translate(ctx, req)
}
