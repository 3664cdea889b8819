package onboarding

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"nanobanana-studio/modules/assets"
	"nanobanana-studio/modules/client"
	"nanobanana-studio/modules/common/logger"
	"nanobanana-studio/modules/session"
)

// Steps of the onboarding flow.
const (
	StepClientInfo = iota + 1
	StepFolderSetup
	StepUpload
	StepLabel
	StepComplete
)

var stepNames = map[int]string{
	StepClientInfo:  "Client Info",
	StepFolderSetup: "Folder Setup",
	StepUpload:      "Upload Images",
	StepLabel:       "Label Images",
	StepComplete:    "Complete",
}

// StepName returns the display name of a step.
func StepName(step int) string {
	return stepNames[step]
}

// Storage is the part of the asset gateway the flow needs.
type Storage interface {
	ClientExists(ctx context.Context, clientID string) (bool, error)
	CreateClientFolders(clientID string) (*assets.FolderSetup, error)
	GetUploadConfig(clientID string) (*assets.UploadConfig, error)
}

// Service drives the five-step onboarding flow. All state lives in the
// session; the service itself holds none.
type Service struct {
	sessions *session.Manager
	storage  Storage
	baseURL  string
	log      zerolog.Logger
}

func NewService(sessions *session.Manager, storage Storage, baseURL string, log *zerolog.Logger) *Service {
	l := logger.Discard()
	if log != nil {
		l = *log
	}
	return &Service{
		sessions: sessions,
		storage:  storage,
		baseURL:  strings.TrimRight(baseURL, "/"),
		log:      l.With().Str("module", "onboarding").Logger(),
	}
}

// Start opens a new onboarding session at step 1.
func (s *Service) Start(ctx context.Context) (*session.Session, error) {
	return s.sessions.Create(ctx)
}

// SubmitClient sanitizes, validates and probes the client name, then moves
// to the folder step. Any failure leaves the session at step 1.
func (s *Service) SubmitClient(ctx context.Context, id, rawName string) (*session.Session, error) {
	return s.sessions.Update(ctx, id, func(sess *session.Session) error {
		ob := &sess.Onboarding
		if err := requireStep(ob, StepClientInfo, "submit a client name"); err != nil {
			return err
		}
		lc := client.NewLifecycle()
		if err := lc.Submit(rawName, true); err != nil {
			return err
		}
		if err := lc.Resolve(ctx, s.storage); err != nil {
			return err
		}

		ob.Client = lc
		ob.Step = StepFolderSetup
		s.log.Info().Str("client", lc.ClientID).Bool("exists", lc.Exists).Msg("🔍 Client checked")
		return nil
	})
}

// SetupFolders takes the "create" or "proceed" branch. Neither writes to storage.
func (s *Service) SetupFolders(ctx context.Context, id, action string) (*session.Session, *assets.FolderSetup, error) {
	var setup *assets.FolderSetup
	sess, err := s.sessions.Update(ctx, id, func(sess *session.Session) error {
		ob := &sess.Onboarding
		if err := requireStep(ob, StepFolderSetup, "set up folders"); err != nil {
			return err
		}

		switch strings.ToLower(strings.TrimSpace(action)) {
		case "create":
			created, err := s.storage.CreateClientFolders(ob.Client.ClientID)
			if err != nil {
				return err
			}
			setup = created
		case "proceed", "":
		default:
			return &client.ValidationError{Field: "action", Message: "action must be create or proceed"}
		}

		if err := ob.Client.Proceed(); err != nil {
			return err
		}
		ob.Step = StepUpload
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return sess, setup, nil
}

// PrepareUpload returns the upload page link for the client. The upload
// config is fetched once and cached in the session. uploadedCount, when
// given, records how many images the operator reports as uploaded.
func (s *Service) PrepareUpload(ctx context.Context, id string, uploadedCount *int) (*session.Session, error) {
	return s.sessions.Update(ctx, id, func(sess *session.Session) error {
		ob := &sess.Onboarding
		if err := requireStep(ob, StepUpload, "upload images"); err != nil {
			return err
		}

		if ob.UploadConfig == nil {
			cfg, err := s.storage.GetUploadConfig(ob.Client.ClientID)
			if err != nil {
				return err
			}
			ob.UploadConfig = cfg
		}
		q := url.Values{}
		q.Set("client", ob.Client.ClientID)
		q.Set("cloud", ob.UploadConfig.CloudName)
		q.Set("preset", ob.UploadConfig.UploadPreset)
		q.Set("folder", ob.UploadConfig.Folder)
		ob.UploadURL = s.baseURL + "/upload?" + q.Encode()

		if uploadedCount != nil {
			if *uploadedCount < 0 {
				return &client.ValidationError{Field: "uploaded_count", Message: "uploaded_count must not be negative"}
			}
			ob.UploadedCount = *uploadedCount
		}
		return nil
	})
}

// StartLabeling moves from upload to labeling and returns the labeling link.
func (s *Service) StartLabeling(ctx context.Context, id string) (*session.Session, error) {
	return s.sessions.Update(ctx, id, func(sess *session.Session) error {
		ob := &sess.Onboarding
		if err := requireStep(ob, StepUpload, "start labeling"); err != nil {
			return err
		}
		q := url.Values{}
		q.Set("client", ob.Client.ClientID)
		ob.LabelURL = s.baseURL + "/label-images?" + q.Encode()
		ob.Step = StepLabel
		return nil
	})
}

// Complete finishes the flow.
func (s *Service) Complete(ctx context.Context, id string) (*session.Session, error) {
	return s.sessions.Update(ctx, id, func(sess *session.Session) error {
		ob := &sess.Onboarding
		if err := requireStep(ob, StepLabel, "complete onboarding"); err != nil {
			return err
		}
		ob.Step = StepComplete
		s.log.Info().Str("client", ob.Client.ClientID).Int("uploaded", ob.UploadedCount).Msg("🎉 Onboarding complete")
		return nil
	})
}

// Back returns to the previous step, never below step 1. Going back to the
// first or second step reopens the client decision.
func (s *Service) Back(ctx context.Context, id string) (*session.Session, error) {
	return s.sessions.Update(ctx, id, func(sess *session.Session) error {
		ob := &sess.Onboarding
		if ob.Step <= StepClientInfo {
			ob.Step = StepClientInfo
			return nil
		}
		ob.Step--
		switch ob.Step {
		case StepClientInfo:
			ob.Client.Reset()
			ob.UploadConfig = nil
			ob.UploadURL = ""
		case StepFolderSetup:
			ob.Client.Reopen()
		}
		return nil
	})
}

// Reset clears the onboarding state and returns to step 1.
func (s *Service) Reset(ctx context.Context, id string) (*session.Session, error) {
	return s.sessions.Update(ctx, id, func(sess *session.Session) error {
		sess.Onboarding = session.OnboardingState{Step: StepClientInfo, Client: client.NewLifecycle()}
		return nil
	})
}

func requireStep(ob *session.OnboardingState, want int, action string) error {
	if ob.Step == want {
		return nil
	}
	return &client.ValidationError{
		Field:   "step",
		Message: fmt.Sprintf("cannot %s at step %d (%s)", action, ob.Step, StepName(ob.Step)),
	}
}
