package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/huddlehq/huddle/internal/account"
	"github.com/huddlehq/huddle/internal/api/validation"
	"github.com/huddlehq/huddle/internal/auth"
	"github.com/huddlehq/huddle/internal/game"
	"github.com/huddlehq/huddle/internal/playbook"
	"github.com/huddlehq/huddle/internal/player"
	"github.com/huddlehq/huddle/internal/team"
)

// seedFile is the YAML layout read by `huddlectl seed`.
type seedFile struct {
	Team    seedTeam     `json:"team"`
	Coach   seedCoach    `json:"coach"`
	Players []seedPlayer `json:"players" validate:"dive"`
	Plays   []seedPlay   `json:"plays" validate:"dive"`
	Games   []seedGame   `json:"games" validate:"dive"`
}

type seedTeam struct {
	Name  string `json:"name" validate:"notblank,max=255"`
	Level string `json:"level" validate:"required,oneof=youth middle_school high_school other"`
}

type seedCoach struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Name     string `json:"name" validate:"notblank,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type seedPlayer struct {
	FirstName    string   `json:"firstName" validate:"notblank,max=100"`
	LastName     string   `json:"lastName" validate:"notblank,max=100"`
	JerseyNumber int      `json:"jerseyNumber" validate:"gte=0,lte=99"`
	Positions    []string `json:"positions" validate:"max=4,dive,position"`
	Grade        *int     `json:"grade" validate:"omitempty,gte=1,lte=12"`
	Status       string   `json:"status" validate:"omitempty,oneof=active injured inactive"`
}

type seedPlay struct {
	Name      string          `json:"name" validate:"notblank,max=120"`
	Side      string          `json:"side" validate:"required,oneof=offense defense special_teams"`
	Formation string          `json:"formation" validate:"max=80"`
	PlayType  string          `json:"playType" validate:"omitempty,oneof=run pass rpo screen special blitz coverage"`
	Personnel string          `json:"personnel" validate:"max=20"`
	Tags      []string        `json:"tags" validate:"max=20,dive,max=40"`
	Diagram   json.RawMessage `json:"diagram"`
	Notes     string          `json:"notes" validate:"max=4000"`
}

type seedGame struct {
	Opponent  string `json:"opponent" validate:"notblank,max=120"`
	KickoffAt string `json:"kickoffAt" validate:"required"`
	Location  string `json:"location" validate:"max=200"`
	IsHome    bool   `json:"isHome"`
	GameType  string `json:"gameType" validate:"omitempty,oneof=regular scrimmage playoff"`
}

// TeamFinder looks teams up by name.
type TeamFinder interface {
	GetByName(ctx context.Context, name string) (*team.Team, error)
}

// TeamSigner creates a team with its head coach and trial.
type TeamSigner interface {
	Signup(ctx context.Context, in account.SignupInput) (*auth.Session, *team.Team, error)
}

type playerCreator interface {
	Create(ctx context.Context, p *player.Player) error
}

type playCreator interface {
	Create(ctx context.Context, p *playbook.Play) error
}

type gameCreator interface {
	Create(ctx context.Context, g *game.Game) error
}

type seeder struct {
	teams   TeamFinder
	signup  TeamSigner
	players playerCreator
	plays   playCreator
	games   gameCreator
}

func newSeedCmd(a *app) *cobra.Command {
	var file string
	var force bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a team with roster, playbook and schedule from a YAML file",
		Long: `Create a team from a YAML seed file. The team starts on a trial and
its coach becomes head coach. Seeding a team name that already exists fails
unless --force is given, in which case the file is skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			seed, err := parseSeed(raw)
			if err != nil {
				return err
			}

			ctx, cancel := a.commandContext(cmd)
			defer cancel()
			svc, err := a.services(ctx)
			if err != nil {
				return err
			}
			s := &seeder{teams: svc.teams, signup: svc.accounts, players: svc.players, plays: svc.plays, games: svc.games}
			return s.apply(ctx, cmd.OutOrStdout(), seed, force)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "seed.yaml", "Seed file to load")
	cmd.Flags().BoolVar(&force, "force", false, "Skip the file instead of failing when the team already exists")
	return cmd
}

// parseSeed decodes and validates a seed file.
func parseSeed(raw []byte) (*seedFile, error) {
	var s seedFile
	if err := yaml.UnmarshalStrict(raw, &s); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}

	problems := validation.Struct(s)
	for i, g := range s.Games {
		if _, err := time.Parse(time.RFC3339, g.KickoffAt); g.KickoffAt != "" && err != nil {
			problems = append(problems, validation.FieldError{
				Field:   fmt.Sprintf("games[%d].kickoffAt", i),
				Message: "must be an RFC 3339 timestamp",
			})
		}
	}
	for i, p := range s.Plays {
		if err := playbook.CheckDiagram(p.Diagram); err != nil {
			problems = append(problems, validation.FieldError{
				Field:   fmt.Sprintf("plays[%d].diagram", i),
				Message: err.Error(),
			})
		}
	}
	if len(problems) > 0 {
		msgs := make([]string, 0, len(problems))
		for _, p := range problems {
			msgs = append(msgs, p.Field+": "+p.Message)
		}
		return nil, fmt.Errorf("invalid seed file: %s", strings.Join(msgs, "; "))
	}
	return &s, nil
}

func (s *seeder) apply(ctx context.Context, out io.Writer, seed *seedFile, force bool) error {
	name := strings.TrimSpace(seed.Team.Name)
	if _, err := s.teams.GetByName(ctx, name); err == nil {
		if force {
			fmt.Fprintf(out, "team %q already exists, skipping\n", name)
			return nil
		}
		return fmt.Errorf("team %q already exists (use --force to skip it)", name)
	} else if !errors.Is(err, team.ErrTeamNotFound) {
		return fmt.Errorf("looking up team: %w", err)
	}

	_, t, err := s.signup.Signup(ctx, account.SignupInput{
		Email:    seed.Coach.Email,
		Password: seed.Coach.Password,
		Name:     strings.TrimSpace(seed.Coach.Name),
		TeamName: name,
		Level:    seed.Team.Level,
	})
	if err != nil {
		return fmt.Errorf("creating team: %w", err)
	}

	for _, sp := range seed.Players {
		status := sp.Status
		if status == "" {
			status = player.StatusActive
		}
		p := &player.Player{
			TeamID:       t.ID,
			FirstName:    strings.TrimSpace(sp.FirstName),
			LastName:     strings.TrimSpace(sp.LastName),
			JerseyNumber: sp.JerseyNumber,
			Positions:    sp.Positions,
			Grade:        sp.Grade,
			Status:       status,
		}
		if p.Positions == nil {
			p.Positions = []string{}
		}
		if err := s.players.Create(ctx, p); err != nil {
			return fmt.Errorf("creating player #%d %s: %w", sp.JerseyNumber, sp.LastName, err)
		}
	}

	for _, sp := range seed.Plays {
		p := &playbook.Play{
			TeamID:    t.ID,
			Name:      strings.TrimSpace(sp.Name),
			Side:      sp.Side,
			Formation: sp.Formation,
			PlayType:  sp.PlayType,
			Personnel: sp.Personnel,
			Tags:      sp.Tags,
			Diagram:   sp.Diagram,
			Notes:     sp.Notes,
		}
		if p.Tags == nil {
			p.Tags = []string{}
		}
		if err := s.plays.Create(ctx, p); err != nil {
			return fmt.Errorf("creating play %s: %w", sp.Name, err)
		}
	}

	for _, sg := range seed.Games {
		// Validated in parseSeed.
		kickoff, _ := time.Parse(time.RFC3339, sg.KickoffAt)
		gameType := sg.GameType
		if gameType == "" {
			gameType = game.TypeRegular
		}
		g := &game.Game{
			TeamID:    t.ID,
			Opponent:  strings.TrimSpace(sg.Opponent),
			KickoffAt: kickoff.UTC(),
			Location:  sg.Location,
			IsHome:    sg.IsHome,
			GameType:  gameType,
			Plan:      game.Plan{Keys: []string{}, OpeningScript: []string{}},
		}
		if err := s.games.Create(ctx, g); err != nil {
			return fmt.Errorf("creating game vs %s: %w", sg.Opponent, err)
		}
	}

	fmt.Fprintf(out, "seeded team %q (%s): %d players, %d plays, %d games\n",
		t.Name, t.ID, len(seed.Players), len(seed.Plays), len(seed.Games))
	return nil
}
