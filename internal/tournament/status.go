package tournament

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

type TournamentStatus string

const (
	TournamentOpen       TournamentStatus = "open"
	TournamentInProgress TournamentStatus = "in_progress"
	TournamentFinished   TournamentStatus = "finished"
	TournamentCancelled  TournamentStatus = "cancelled"
)

type RegistrationStatus string

const (
	RegistrationActive    RegistrationStatus = "active"
	RegistrationCancelled RegistrationStatus = "cancelled"
)

type RoundState string

const (
	RoundAwaitingPairing RoundState = "awaiting_pairing"
	RoundPaired          RoundState = "paired"
	RoundActive          RoundState = "active"
	RoundFinished        RoundState = "finished"
)

type TableState string

const (
	TableInProgress  TableState = "in_progress"
	TableFinished    TableState = "finished"
	TableNeedsReview TableState = "needs_review"
)

// Every synonym is stored in normalized form, see normalizeToken.
var roundVocabulary = map[string]RoundState{
	"awaiting_pairing":          RoundAwaitingPairing,
	"aguardando_emparelhamento": RoundAwaitingPairing,
	"aguardando":                RoundAwaitingPairing,
	"pendente":                  RoundAwaitingPairing,

	"paired":                      RoundPaired,
	"emparelhamento":              RoundPaired,
	"emparelhada":                 RoundPaired,
	"emparelhamento_em_andamento": RoundPaired,
	"pronto_para_iniciar":         RoundPaired,

	"active":       RoundActive,
	"in_progress":  RoundActive,
	"em_andamento": RoundActive,

	"finished":   RoundFinished,
	"finalizada": RoundFinished,
	"finalizado": RoundFinished,
}

var tableVocabulary = map[string]TableState{
	"in_progress":  TableInProgress,
	"em_andamento": TableInProgress,

	"finished":   TableFinished,
	"finalizado": TableFinished,
	"finalizada": TableFinished,

	"needs_review":  TableNeedsReview,
	"revisar_dados": TableNeedsReview,
}

var tournamentVocabulary = map[string]TournamentStatus{
	"open":   TournamentOpen,
	"aberto": TournamentOpen,

	"in_progress":  TournamentInProgress,
	"em_andamento": TournamentInProgress,

	"finished":   TournamentFinished,
	"finalizado": TournamentFinished,

	"cancelled": TournamentCancelled,
	"canceled":  TournamentCancelled,
	"cancelado": TournamentCancelled,
}

var registrationVocabulary = map[string]RegistrationStatus{
	"active":   RegistrationActive,
	"inscrito": RegistrationActive,

	"cancelled": RegistrationCancelled,
	"canceled":  RegistrationCancelled,
	"cancelado": RegistrationCancelled,
}

// normalizeToken folds case, surrounding whitespace and the space/hyphen separators
// into a single underscore-joined token ("Em Andamento" -> "em_andamento").
func normalizeToken(raw string) string {
	fields := strings.FieldsFunc(strings.ToLower(strings.TrimSpace(raw)), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t'
	})
	return strings.Join(fields, "_")
}

func CanonicalizeRound(raw string) (RoundState, error) {
	if s, ok := roundVocabulary[normalizeToken(raw)]; ok {
		return s, nil
	}
	return "", fmt.Errorf("%w: %q is not a known round status", ErrUnknownStatus, raw)
}

func CanonicalizeTable(raw string) (TableState, error) {
	if s, ok := tableVocabulary[normalizeToken(raw)]; ok {
		return s, nil
	}
	return "", fmt.Errorf("%w: %q is not a known table status", ErrUnknownStatus, raw)
}

func CanonicalizeTournament(raw string) (TournamentStatus, error) {
	if s, ok := tournamentVocabulary[normalizeToken(raw)]; ok {
		return s, nil
	}
	return "", fmt.Errorf("%w: %q is not a known tournament status", ErrUnknownStatus, raw)
}

func CanonicalizeRegistration(raw string) (RegistrationStatus, error) {
	if s, ok := registrationVocabulary[normalizeToken(raw)]; ok {
		return s, nil
	}
	return "", fmt.Errorf("%w: %q is not a known registration status", ErrUnknownStatus, raw)
}

// Status columns go through the canonicalizers on the way in, so rows written with the
// legacy vocabulary load as canonical values.

func (s *RoundState) Scan(src any) error {
	raw, err := scanString(src)
	if err != nil {
		return err
	}
	v, err := CanonicalizeRound(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s RoundState) Value() (driver.Value, error) { return string(s), nil }

func (s *TournamentStatus) Scan(src any) error {
	raw, err := scanString(src)
	if err != nil {
		return err
	}
	v, err := CanonicalizeTournament(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s TournamentStatus) Value() (driver.Value, error) { return string(s), nil }

func (s *RegistrationStatus) Scan(src any) error {
	raw, err := scanString(src)
	if err != nil {
		return err
	}
	v, err := CanonicalizeRegistration(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s RegistrationStatus) Value() (driver.Value, error) { return string(s), nil }

func scanString(src any) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return "", fmt.Errorf("%w: empty status column", ErrUnknownStatus)
	default:
		return "", fmt.Errorf("%w: unsupported status column type %T", ErrUnknownStatus, src)
	}
}
