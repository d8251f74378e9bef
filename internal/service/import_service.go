package service

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-teams-api/internal/models"
	appErrors "github.com/noah-isme/lms-teams-api/pkg/errors"
)

// Columns 0 and 1 of the input file are user_identifier and enrollment_mode;
// teamset columns start after them.
const reservedImportColumns = 2

// Description given to teams created on first reference during an import.
const importedTeamDescription = "imported"

const defaultMaxImportErrors = 5

type userDirectory interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type enrollmentStore interface {
	IsEnrolled(ctx context.Context, userID, courseID string) (bool, error)
}

type courseConfigStore interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ListTeamsets(ctx context.Context, courseID string) ([]models.TeamsetConfig, error)
}

type teamStore interface {
	FindByNameAndTeamset(ctx context.Context, name, teamsetID string) (*models.Team, error)
	Create(ctx context.Context, team *models.Team) error
	MemberCount(ctx context.Context, teamID string) (int, error)
	MemberUserIDsByTeamset(ctx context.Context, courseID, teamsetID string) ([]string, error)
	AddMember(ctx context.Context, team *models.Team, userID string) (models.MembershipOutcome, error)
}

type eventSink interface {
	Emit(name, courseID string, payload interface{})
}

type lookupInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// TeamMembershipImportService assigns learners to teams from an uploaded CSV.
// The whole batch is validated against current state before anything is
// committed; a single invalid row rejects the file. Commit-phase conflicts are
// reported but already-committed rows are not rolled back.
type TeamMembershipImportService struct {
	users       userDirectory
	enrollments enrollmentStore
	courses     courseConfigStore
	teams       teamStore
	events      eventSink
	cache       lookupInvalidator
	metrics     *MetricsService
	maxErrors   int
	logger      *zap.Logger
}

// NewTeamMembershipImportService constructs the importer. maxErrors caps the
// accumulated error list; once reached, all further work stops.
func NewTeamMembershipImportService(
	users userDirectory,
	enrollments enrollmentStore,
	courses courseConfigStore,
	teams teamStore,
	events eventSink,
	cache lookupInvalidator,
	metrics *MetricsService,
	maxErrors int,
	logger *zap.Logger,
) *TeamMembershipImportService {
	if maxErrors <= 0 {
		maxErrors = defaultMaxImportErrors
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeamMembershipImportService{
		users:       users,
		enrollments: enrollments,
		courses:     courses,
		teams:       teams,
		events:      events,
		cache:       cache,
		metrics:     metrics,
		maxErrors:   maxErrors,
		logger:      logger,
	}
}

// importState holds everything scoped to one import invocation. It is created
// at call start and discarded at call end; nothing survives between imports.
type importState struct {
	maxErrors int
	errors    []string

	// column index -> teamset id, for columns past the reserved two
	columnTeamsets map[int]string
	// teamset id -> configured capacity (nil = unbounded)
	teamsetCaps map[string]*int
	// teamset id -> ids of users holding (or about to hold) a membership there
	teamsetMembers map[string]map[string]struct{}
	// "name\x00teamset" -> additions promised by earlier rows of this file
	pendingAdds map[string]int
	// identifier column value -> resolved user, reused by the commit pass
	resolvedUsers map[string]*models.User
	// identifiers that failed resolution or enrollment; their rows are skipped
	excluded map[string]struct{}
}

func newImportState(maxErrors int) *importState {
	return &importState{
		maxErrors:      maxErrors,
		columnTeamsets: make(map[int]string),
		teamsetCaps:    make(map[string]*int),
		teamsetMembers: make(map[string]map[string]struct{}),
		pendingAdds:    make(map[string]int),
		resolvedUsers:  make(map[string]*models.User),
		excluded:       make(map[string]struct{}),
	}
}

func (s *importState) addError(msg string) {
	if s.full() {
		return
	}
	s.errors = append(s.errors, msg)
}

func (s *importState) full() bool {
	return len(s.errors) >= s.maxErrors
}

func teamKey(name, teamsetID string) string {
	return name + "\x00" + teamsetID
}

// Import reads a membership CSV and assigns learners to teams. The returned
// report carries the success flag, the ordered error list and the count of
// memberships actually created. A non-nil error is returned only for terminal
// failures (unknown course, unreadable file, store outage); validation
// problems are reported through the error list instead.
func (s *TeamMembershipImportService) Import(ctx context.Context, courseID string, input io.Reader) (*models.ImportReport, error) {
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	reader := csv.NewReader(input)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "malformed CSV input")
	}
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "empty file")
	}

	state := newImportState(s.maxErrors)
	report := &models.ImportReport{Errors: []string{}}

	if s.validateHeader(ctx, courseID, rows[0], state) {
		s.validateRows(ctx, courseID, rows[1:], state)
		if len(state.errors) == 0 {
			if err := s.commitRows(ctx, courseID, rows[1:], state, report); err != nil {
				return nil, err
			}
		}
	}

	report.Errors = append(report.Errors, state.errors...)
	report.Success = len(report.Errors) == 0

	if s.metrics != nil {
		s.metrics.ObserveImport(report.Success, len(rows)-1, len(report.Errors), report.RecordsAdded)
	}
	s.logger.Info("membership import finished",
		zap.String("course_id", courseID),
		zap.Bool("success", report.Success),
		zap.Int("records_added", report.RecordsAdded),
		zap.Int("errors", len(report.Errors)),
	)

	if report.Success && report.RecordsAdded > 0 && s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, lookupCachePattern(courseID)); err != nil {
			s.logger.Warn("failed to invalidate team lookup cache", zap.String("course_id", courseID), zap.Error(err))
		}
	}

	return report, nil
}

// validateHeader maps teamset columns to configured teamsets and preloads the
// current membership sets per teamset. The first unrecognized column label
// aborts the whole import with a single error naming it.
func (s *TeamMembershipImportService) validateHeader(ctx context.Context, courseID string, header []string, state *importState) bool {
	if len(header) < reservedImportColumns {
		state.addError("Header must contain user_identifier and enrollment_mode columns.")
		return false
	}

	teamsets, err := s.courses.ListTeamsets(ctx, courseID)
	if err != nil {
		state.addError(fmt.Sprintf("Failed to load teamsets for course %s.", courseID))
		return false
	}
	configured := make(map[string]*int, len(teamsets))
	for i := range teamsets {
		configured[teamsets[i].ID] = teamsets[i].MaxTeamSize
	}

	for i := reservedImportColumns; i < len(header); i++ {
		label := strings.TrimSpace(header[i])
		maxSize, ok := configured[label]
		if !ok {
			state.addError(fmt.Sprintf("Teamset %s does not exist.", label))
			return false
		}
		state.columnTeamsets[i] = label
		state.teamsetCaps[label] = maxSize
	}

	for _, teamsetID := range state.columnTeamsets {
		if _, done := state.teamsetMembers[teamsetID]; done {
			continue
		}
		ids, err := s.teams.MemberUserIDsByTeamset(ctx, courseID, teamsetID)
		if err != nil {
			state.addError(fmt.Sprintf("Failed to load memberships for teamset %s.", teamsetID))
			return false
		}
		members := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			members[id] = struct{}{}
		}
		state.teamsetMembers[teamsetID] = members
	}

	return true
}

// validateRows is the dry-run pass: every data row is checked against current
// state and in-file intents without committing anything.
func (s *TeamMembershipImportService) validateRows(ctx context.Context, courseID string, rows [][]string, state *importState) {
	memberCounts := make(map[string]int)

	for _, row := range rows {
		if state.full() {
			return
		}
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		identifier := strings.TrimSpace(row[0])

		user, ok := s.resolveRowUser(ctx, courseID, identifier, state)
		if !ok {
			continue
		}

		for i := reservedImportColumns; i < len(row); i++ {
			if state.full() {
				return
			}
			teamsetID, mapped := state.columnTeamsets[i]
			if !mapped {
				continue
			}
			teamName := strings.TrimSpace(row[i])
			if teamName == "" {
				continue
			}

			if _, taken := state.teamsetMembers[teamsetID][user.ID]; taken {
				state.addError(fmt.Sprintf("The user %s is already a member of a team in teamset %s.", identifier, teamsetID))
				continue
			}

			team, err := s.teams.FindByNameAndTeamset(ctx, teamName, teamsetID)
			switch {
			case err == sql.ErrNoRows:
				// Team will be created during commit; no capacity applies yet,
				// but the intent still counts against the teamset set.
			case err != nil:
				state.addError(fmt.Sprintf("Failed to look up team %s.", teamName))
				continue
			default:
				key := teamKey(teamName, teamsetID)
				if _, counted := memberCounts[key]; !counted {
					count, err := s.teams.MemberCount(ctx, team.ID)
					if err != nil {
						state.addError(fmt.Sprintf("Failed to count members of team %s.", teamName))
						continue
					}
					memberCounts[key] = count
				}
				if max := state.teamsetCaps[teamsetID]; max != nil && memberCounts[key]+state.pendingAdds[key] >= *max {
					state.addError(fmt.Sprintf("Team %s is already full.", teamName))
					continue
				}
				state.pendingAdds[key]++
			}

			state.teamsetMembers[teamsetID][user.ID] = struct{}{}
		}
	}
}

// resolveRowUser resolves and enrollment-checks the identifier of one row,
// memoizing the result for the commit pass. A false return means the row is
// excluded from further processing.
func (s *TeamMembershipImportService) resolveRowUser(ctx context.Context, courseID, identifier string, state *importState) (*models.User, bool) {
	if _, bad := state.excluded[identifier]; bad {
		return nil, false
	}
	if user, seen := state.resolvedUsers[identifier]; seen {
		return user, true
	}

	user, err := s.users.FindByUsername(ctx, identifier)
	if err == sql.ErrNoRows {
		user, err = s.users.FindByEmail(ctx, identifier)
	}
	if err == sql.ErrNoRows {
		state.excluded[identifier] = struct{}{}
		state.addError(fmt.Sprintf("Username or email %s does not exist.", identifier))
		return nil, false
	}
	if err != nil {
		state.excluded[identifier] = struct{}{}
		state.addError(fmt.Sprintf("Failed to look up user %s.", identifier))
		return nil, false
	}

	enrolled, err := s.enrollments.IsEnrolled(ctx, user.ID, courseID)
	if err != nil {
		state.excluded[identifier] = struct{}{}
		state.addError(fmt.Sprintf("Failed to check enrollment for user %s.", identifier))
		return nil, false
	}
	if !enrolled {
		state.excluded[identifier] = struct{}{}
		state.addError(fmt.Sprintf("User %s is not enrolled in this course.", identifier))
		return nil, false
	}

	state.resolvedUsers[identifier] = user
	return user, true
}

// commitRows runs only when validation produced zero errors. Invariants are
// re-checked against the store immediately before each insert; a late conflict
// appends an error and stops the remaining columns of that row, without
// rolling back earlier commits.
func (s *TeamMembershipImportService) commitRows(ctx context.Context, courseID string, rows [][]string, state *importState, report *models.ImportReport) error {
	for _, row := range rows {
		if state.full() {
			return nil
		}
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		identifier := strings.TrimSpace(row[0])
		user, ok := state.resolvedUsers[identifier]
		if !ok {
			continue
		}

		for i := reservedImportColumns; i < len(row); i++ {
			teamsetID, mapped := state.columnTeamsets[i]
			if !mapped {
				continue
			}
			teamName := strings.TrimSpace(row[i])
			if teamName == "" {
				continue
			}

			team, err := s.teams.FindByNameAndTeamset(ctx, teamName, teamsetID)
			if err == sql.ErrNoRows {
				team = &models.Team{
					CourseID:    courseID,
					TeamsetID:   teamsetID,
					Name:        teamName,
					Description: importedTeamDescription,
				}
				if err := s.teams.Create(ctx, team); err != nil {
					return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create team")
				}
			} else if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team")
			}

			if max := state.teamsetCaps[teamsetID]; max != nil {
				count, err := s.teams.MemberCount(ctx, team.ID)
				if err != nil {
					return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count team members")
				}
				if count >= *max {
					state.addError(fmt.Sprintf("Team %s is already full.", teamName))
					break
				}
			}

			outcome, err := s.teams.AddMember(ctx, team, user.ID)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add team member")
			}
			switch outcome {
			case models.MembershipAdded:
				report.RecordsAdded++
				if s.events != nil {
					s.events.Emit(models.EventLearnerAdded, courseID, models.LearnerAddedPayload{
						TeamID:    team.ID,
						UserID:    user.ID,
						AddMethod: models.AddMethodAnotherUser,
					})
				}
			case models.MembershipAlreadyMember:
				state.addError(fmt.Sprintf("The user %s is already a member of a team in teamset %s.", identifier, teamsetID))
			case models.MembershipNotEnrolled:
				state.addError(fmt.Sprintf("The user %s is not enrolled in the course associated with this team.", identifier))
			}
			if outcome != models.MembershipAdded {
				break
			}
		}
	}
	return nil
}
