package impl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"propguard/config"
	"propguard/internal/domain/entity"
	domainerrors "propguard/internal/domain/errors"
	"propguard/internal/domain/repository"
	"propguard/internal/domain/service"
	"propguard/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Auth = &config.AuthConfig{
		MaxFailedAttempts:      3,
		LockoutDuration:        30 * time.Minute,
		AccessTokenTTL:         15 * time.Minute,
		RefreshTokenTTL:        7 * 24 * time.Hour,
		SessionTTL:             24 * time.Hour,
		MaxActiveSessions:      2,
		PasswordResetTokenTTL:  30 * time.Minute,
		PasswordHistoryEnabled: true,
	}
	cfg.MFA = &config.MFAConfig{Issuer: "propguard-test", LoginChallengeTTL: 5 * time.Minute}
	cfg.Biometric = &config.BiometricConfig{ChallengeTTL: 5 * time.Minute}
	cfg.Audit = &config.AuditConfig{
		FailedLoginThreshold:    3,
		FailedLoginWindow:       15 * time.Minute,
		PermissionDenyThreshold: 3,
		PermissionDenyWindow:    10 * time.Minute,
		BusinessHoursStart:      6,
		BusinessHoursEnd:        22,
		DefaultQueryLimit:       50,
		MaxQueryLimit:           100,
		ExportMaxEntries:        1000,
	}
	cfg.Compliance = &config.ComplianceConfig{
		ReportValidity:     365 * 24 * time.Hour,
		DSRResponseDays:    30,
		FinancialResources: []string{"payments"},
	}

	return cfg
}

// movableClock is a frozen clock tests can advance explicitly.
type movableClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMovableClock() *movableClock {
	return &movableClock{now: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
}

func (c *movableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *movableClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *movableClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// --- repository fakes ---

type fakeUserRepo struct {
	users map[uuid.UUID]*entity.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*entity.User)}
}

func (r *fakeUserRepo) add(user *entity.User) *entity.User {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	r.users[user.ID] = user

	return user
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}

	return user, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}

	return nil, repository.ErrUserNotFound
}

func (r *fakeUserRepo) Create(_ context.Context, user *entity.User) error {
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return domainerrors.ErrUserAlreadyExists
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	r.users[user.ID] = user

	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *entity.User) error {
	if _, ok := r.users[user.ID]; !ok {
		return repository.ErrUserNotFound
	}
	r.users[user.ID] = user

	return nil
}

func (r *fakeUserRepo) IncrementFailedLogins(_ context.Context, id uuid.UUID) (int, error) {
	user, ok := r.users[id]
	if !ok {
		return 0, repository.ErrUserNotFound
	}
	user.FailedLoginAttempts++

	return user.FailedLoginAttempts, nil
}

func (r *fakeUserRepo) Lock(_ context.Context, id uuid.UUID, until time.Time) error {
	user, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.IsLocked = true
	user.LockedUntil = &until

	return nil
}

func (r *fakeUserRepo) ResetLockout(_ context.Context, id uuid.UUID) error {
	user, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.FailedLoginAttempts = 0
	user.IsLocked = false
	user.LockedUntil = nil

	return nil
}

func (r *fakeUserRepo) UpdateRefreshTokenHash(_ context.Context, id uuid.UUID, tokenHash string) error {
	user, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.RefreshTokenHash = tokenHash

	return nil
}

func (r *fakeUserRepo) UpsertSecuritySettings(_ context.Context, settings *entity.SecuritySettings) error {
	user, ok := r.users[settings.UserID]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.SecuritySettings = settings

	return nil
}

type fakeSessionRepo struct {
	sessions []*entity.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{}
}

func (r *fakeSessionRepo) Create(_ context.Context, session *entity.Session) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = session.LastActivity
	}
	r.sessions = append(r.sessions, session)

	return nil
}

func (r *fakeSessionRepo) FindByTokenHash(_ context.Context, tokenHash string) (*entity.Session, error) {
	for _, session := range r.sessions {
		if session.Token == tokenHash {
			return session, nil
		}
	}

	return nil, repository.ErrSessionNotFound
}

func (r *fakeSessionRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Session, error) {
	for _, session := range r.sessions {
		if session.ID == id {
			return session, nil
		}
	}

	return nil, repository.ErrSessionNotFound
}

func (r *fakeSessionRepo) FindActiveByUserID(_ context.Context, userID uuid.UUID, now time.Time) ([]*entity.Session, error) {
	var active []*entity.Session
	for _, session := range r.sessions {
		if session.UserID == userID && session.IsUsable(now) {
			active = append(active, session)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].LastActivity.Before(active[j].LastActivity)
	})

	return active, nil
}

func (r *fakeSessionRepo) Touch(_ context.Context, id uuid.UUID, lastActivity time.Time, expiresAt *time.Time) error {
	for _, session := range r.sessions {
		if session.ID == id {
			session.LastActivity = lastActivity
			if expiresAt != nil {
				session.ExpiresAt = *expiresAt
			}

			return nil
		}
	}

	return repository.ErrSessionNotFound
}

func (r *fakeSessionRepo) InvalidateByTokenHash(_ context.Context, tokenHash string) error {
	for _, session := range r.sessions {
		if session.Token == tokenHash {
			session.IsActive = false
		}
	}

	return nil
}

func (r *fakeSessionRepo) InvalidateByID(_ context.Context, id uuid.UUID) error {
	for _, session := range r.sessions {
		if session.ID == id {
			session.IsActive = false
		}
	}

	return nil
}

func (r *fakeSessionRepo) InvalidateAllByUserID(_ context.Context, userID uuid.UUID) error {
	for _, session := range r.sessions {
		if session.UserID == userID {
			session.IsActive = false
		}
	}

	return nil
}

func (r *fakeSessionRepo) InvalidateAllByUserIDExcept(_ context.Context, userID uuid.UUID, keepTokenHash string) error {
	for _, session := range r.sessions {
		if session.UserID == userID && session.Token != keepTokenHash {
			session.IsActive = false
		}
	}

	return nil
}

func (r *fakeSessionRepo) CountActiveByUserID(_ context.Context, userID uuid.UUID, now time.Time) (int, error) {
	count := 0
	for _, session := range r.sessions {
		if session.UserID == userID && session.IsUsable(now) {
			count++
		}
	}

	return count, nil
}

func (r *fakeSessionRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	var kept []*entity.Session
	var deleted int64
	for _, session := range r.sessions {
		if session.CreatedAt.Before(cutoff) {
			deleted++

			continue
		}
		kept = append(kept, session)
	}
	r.sessions = kept

	return deleted, nil
}

type fakeBiometricRepo struct {
	credentials map[string]*entity.BiometricCredential
}

func newFakeBiometricRepo() *fakeBiometricRepo {
	return &fakeBiometricRepo{credentials: make(map[string]*entity.BiometricCredential)}
}

func (r *fakeBiometricRepo) Create(_ context.Context, credential *entity.BiometricCredential) error {
	if _, ok := r.credentials[credential.CredentialID]; ok {
		return domainerrors.ErrCredentialConflict
	}
	if credential.ID == uuid.Nil {
		credential.ID = uuid.New()
	}
	r.credentials[credential.CredentialID] = credential

	return nil
}

func (r *fakeBiometricRepo) FindByCredentialID(_ context.Context, credentialID string) (*entity.BiometricCredential, error) {
	credential, ok := r.credentials[credentialID]
	if !ok {
		return nil, repository.ErrCredentialNotFound
	}

	return credential, nil
}

func (r *fakeBiometricRepo) FindActiveByUserID(_ context.Context, userID uuid.UUID) ([]*entity.BiometricCredential, error) {
	var active []*entity.BiometricCredential
	for _, credential := range r.credentials {
		if credential.UserID == userID && credential.IsActive {
			active = append(active, credential)
		}
	}

	return active, nil
}

func (r *fakeBiometricRepo) Update(_ context.Context, credential *entity.BiometricCredential) error {
	if _, ok := r.credentials[credential.CredentialID]; !ok {
		return repository.ErrCredentialNotFound
	}
	r.credentials[credential.CredentialID] = credential

	return nil
}

func (r *fakeBiometricRepo) CountActiveByUserID(_ context.Context, userID uuid.UUID) (int, error) {
	count := 0
	for _, credential := range r.credentials {
		if credential.UserID == userID && credential.IsActive {
			count++
		}
	}

	return count, nil
}

type fakeConnectionRepo struct {
	connections []*entity.OAuthConnection
}

func newFakeConnectionRepo() *fakeConnectionRepo {
	return &fakeConnectionRepo{}
}

func (r *fakeConnectionRepo) Create(_ context.Context, conn *entity.OAuthConnection) error {
	if conn.ID == uuid.Nil {
		conn.ID = uuid.New()
	}
	r.connections = append(r.connections, conn)

	return nil
}

func (r *fakeConnectionRepo) FindByProviderIdentity(_ context.Context, provider entity.ProviderType, providerUserID string) (*entity.OAuthConnection, error) {
	for _, conn := range r.connections {
		if conn.Provider == provider && conn.ProviderUserID == providerUserID {
			return conn, nil
		}
	}

	return nil, repository.ErrConnectionNotFound
}

func (r *fakeConnectionRepo) FindByUserAndProvider(_ context.Context, userID uuid.UUID, provider entity.ProviderType) (*entity.OAuthConnection, error) {
	for _, conn := range r.connections {
		if conn.UserID == userID && conn.Provider == provider {
			return conn, nil
		}
	}

	return nil, repository.ErrConnectionNotFound
}

func (r *fakeConnectionRepo) Update(_ context.Context, conn *entity.OAuthConnection) error {
	for i, existing := range r.connections {
		if existing.ID == conn.ID {
			r.connections[i] = conn

			return nil
		}
	}

	return repository.ErrConnectionNotFound
}

type fakeRBACRepo struct {
	roles       map[uuid.UUID]*entity.Role
	permissions map[uuid.UUID]*entity.Permission
	userRoles   map[uuid.UUID][]uuid.UUID
	conflicts   []uuid.UUID
}

func newFakeRBACRepo() *fakeRBACRepo {
	return &fakeRBACRepo{
		roles:       make(map[uuid.UUID]*entity.Role),
		permissions: make(map[uuid.UUID]*entity.Permission),
		userRoles:   make(map[uuid.UUID][]uuid.UUID),
	}
}

func (r *fakeRBACRepo) CreateRole(_ context.Context, role *entity.Role) error {
	for _, existing := range r.roles {
		if existing.Name == role.Name {
			return domainerrors.ErrRoleConflict
		}
	}
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	r.roles[role.ID] = role

	return nil
}

func (r *fakeRBACRepo) FindRoleByID(_ context.Context, id uuid.UUID) (*entity.Role, error) {
	role, ok := r.roles[id]
	if !ok {
		return nil, repository.ErrRoleNotFound
	}

	return role, nil
}

func (r *fakeRBACRepo) FindRoleByName(_ context.Context, name string) (*entity.Role, error) {
	for _, role := range r.roles {
		if role.Name == name {
			return role, nil
		}
	}

	return nil, repository.ErrRoleNotFound
}

func (r *fakeRBACRepo) ListRoles(_ context.Context) ([]*entity.Role, error) {
	roles := make([]*entity.Role, 0, len(r.roles))
	for _, role := range r.roles {
		roles = append(roles, role)
	}

	return roles, nil
}

func (r *fakeRBACRepo) ReplaceRolePermissions(_ context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error {
	role, ok := r.roles[roleID]
	if !ok {
		return repository.ErrRoleNotFound
	}

	role.Permissions = nil
	for _, id := range permissionIDs {
		permission, ok := r.permissions[id]
		if !ok {
			return repository.ErrPermissionNotFound
		}
		role.Permissions = append(role.Permissions, permission)
	}

	return nil
}

func (r *fakeRBACRepo) CreatePermission(_ context.Context, permission *entity.Permission) error {
	if permission.ID == uuid.Nil {
		permission.ID = uuid.New()
	}
	r.permissions[permission.ID] = permission

	return nil
}

func (r *fakeRBACRepo) ListPermissions(_ context.Context) ([]*entity.Permission, error) {
	permissions := make([]*entity.Permission, 0, len(r.permissions))
	for _, permission := range r.permissions {
		permissions = append(permissions, permission)
	}

	return permissions, nil
}

func (r *fakeRBACRepo) AssignRoleToUser(_ context.Context, userID, roleID uuid.UUID) error {
	if _, ok := r.roles[roleID]; !ok {
		return repository.ErrRoleNotFound
	}
	for _, assigned := range r.userRoles[userID] {
		if assigned == roleID {
			return nil
		}
	}
	r.userRoles[userID] = append(r.userRoles[userID], roleID)

	return nil
}

func (r *fakeRBACRepo) RemoveRoleFromUser(_ context.Context, userID, roleID uuid.UUID) error {
	assigned := r.userRoles[userID]
	for i, id := range assigned {
		if id == roleID {
			r.userRoles[userID] = append(assigned[:i], assigned[i+1:]...)

			return nil
		}
	}

	return nil
}

func (r *fakeRBACRepo) ListRolesByUserID(_ context.Context, userID uuid.UUID) ([]*entity.Role, error) {
	var roles []*entity.Role
	for _, roleID := range r.userRoles[userID] {
		if role, ok := r.roles[roleID]; ok {
			roles = append(roles, role)
		}
	}

	return roles, nil
}

func (r *fakeRBACRepo) ListSegregationConflicts(_ context.Context) ([]uuid.UUID, error) {
	return r.conflicts, nil
}

type maintenanceAccess struct {
	requesterID uuid.UUID
	property    repository.PropertyAccess
}

type fakeOwnershipReader struct {
	properties  map[uuid.UUID]repository.PropertyAccess
	units       map[uuid.UUID]repository.PropertyAccess
	maintenance map[uuid.UUID]maintenanceAccess
}

func newFakeOwnershipReader() *fakeOwnershipReader {
	return &fakeOwnershipReader{
		properties:  make(map[uuid.UUID]repository.PropertyAccess),
		units:       make(map[uuid.UUID]repository.PropertyAccess),
		maintenance: make(map[uuid.UUID]maintenanceAccess),
	}
}

func (r *fakeOwnershipReader) FindPropertyAccess(_ context.Context, propertyID uuid.UUID) (*repository.PropertyAccess, error) {
	access, ok := r.properties[propertyID]
	if !ok {
		return nil, repository.ErrPropertyNotFound
	}

	return &access, nil
}

func (r *fakeOwnershipReader) FindUnitPropertyAccess(_ context.Context, unitID uuid.UUID) (*repository.PropertyAccess, error) {
	access, ok := r.units[unitID]
	if !ok {
		return nil, repository.ErrPropertyNotFound
	}

	return &access, nil
}

func (r *fakeOwnershipReader) FindMaintenanceAccess(_ context.Context, requestID uuid.UUID) (uuid.UUID, *repository.PropertyAccess, error) {
	access, ok := r.maintenance[requestID]
	if !ok {
		return uuid.Nil, nil, repository.ErrPropertyNotFound
	}

	return access.requesterID, &access.property, nil
}

type fakeAuditRepo struct {
	entries     []*entity.AuditEntry
	incidents   []*entity.SecurityIncident
	incidentErr error
}

func newFakeAuditRepo() *fakeAuditRepo {
	return &fakeAuditRepo{}
}

func (r *fakeAuditRepo) matches(entry *entity.AuditEntry, filter repository.AuditFilter) bool {
	if filter.Action != "" && entry.Action != filter.Action {
		return false
	}
	if filter.EntityType != "" && entry.EntityType != filter.EntityType {
		return false
	}
	if filter.EntityID != "" && entry.EntityID != filter.EntityID {
		return false
	}
	if filter.ActorID != nil && (entry.ActorID == nil || *entry.ActorID != *filter.ActorID) {
		return false
	}
	if filter.ComplianceType != "" && entry.ComplianceType != filter.ComplianceType {
		return false
	}
	if filter.Severity != "" && entry.Severity != filter.Severity {
		return false
	}
	if filter.IPAddress != "" && entry.IPAddress != filter.IPAddress {
		return false
	}
	if filter.From != nil && entry.CreatedAt.Before(*filter.From) {
		return false
	}
	if filter.To != nil && entry.CreatedAt.After(*filter.To) {
		return false
	}

	return true
}

func (r *fakeAuditRepo) Create(_ context.Context, entry *entity.AuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	r.entries = append(r.entries, entry)

	return nil
}

func (r *fakeAuditRepo) Query(_ context.Context, filter repository.AuditFilter) ([]*entity.AuditEntry, int64, error) {
	var matched []*entity.AuditEntry
	for _, entry := range r.entries {
		if r.matches(entry, filter) {
			matched = append(matched, entry)
		}
	}
	total := int64(len(matched))

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	return matched, total, nil
}

func (r *fakeAuditRepo) Count(_ context.Context, filter repository.AuditFilter) (int64, error) {
	var count int64
	for _, entry := range r.entries {
		if r.matches(entry, filter) {
			count++
		}
	}

	return count, nil
}

func (r *fakeAuditRepo) DeleteOlderThan(_ context.Context, cutoff time.Time, severity entity.Severity) (int64, error) {
	var kept []*entity.AuditEntry
	var deleted int64
	for _, entry := range r.entries {
		if entry.CreatedAt.Before(cutoff) && (severity == "" || entry.Severity == severity) {
			deleted++

			continue
		}
		kept = append(kept, entry)
	}
	r.entries = kept

	return deleted, nil
}

func (r *fakeAuditRepo) CreateIncident(_ context.Context, incident *entity.SecurityIncident) error {
	if r.incidentErr != nil {
		return r.incidentErr
	}
	if incident.ID == uuid.Nil {
		incident.ID = uuid.New()
	}
	r.incidents = append(r.incidents, incident)

	return nil
}

func (r *fakeAuditRepo) ListIncidents(_ context.Context, filter repository.IncidentFilter) ([]*entity.SecurityIncident, error) {
	var matched []*entity.SecurityIncident
	for _, incident := range r.incidents {
		if filter.Resolved != nil && incident.Resolved != *filter.Resolved {
			continue
		}
		if filter.Severity != "" && incident.Severity != filter.Severity {
			continue
		}
		matched = append(matched, incident)
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	return matched, nil
}

type fakeComplianceRepo struct {
	policies map[string]*entity.DataRetentionPolicy
	reports  []*entity.ComplianceReport
	requests []*entity.DataSubjectRequest
	cleanups map[string]time.Time
}

func newFakeComplianceRepo() *fakeComplianceRepo {
	return &fakeComplianceRepo{
		policies: make(map[string]*entity.DataRetentionPolicy),
		cleanups: make(map[string]time.Time),
	}
}

func (r *fakeComplianceRepo) FindPolicyByDataType(_ context.Context, dataType string) (*entity.DataRetentionPolicy, error) {
	policy, ok := r.policies[dataType]
	if !ok {
		return nil, repository.ErrPolicyNotFound
	}

	return policy, nil
}

func (r *fakeComplianceRepo) ListPolicies(_ context.Context) ([]*entity.DataRetentionPolicy, error) {
	policies := make([]*entity.DataRetentionPolicy, 0, len(r.policies))
	for _, policy := range r.policies {
		policies = append(policies, policy)
	}

	return policies, nil
}

func (r *fakeComplianceRepo) UpsertPolicy(_ context.Context, policy *entity.DataRetentionPolicy) error {
	if policy.ID == uuid.Nil {
		policy.ID = uuid.New()
	}
	r.policies[policy.DataType] = policy

	return nil
}

func (r *fakeComplianceRepo) MarkCleanup(_ context.Context, dataType string, ranAt time.Time) error {
	r.cleanups[dataType] = ranAt

	return nil
}

func (r *fakeComplianceRepo) CreateReport(_ context.Context, report *entity.ComplianceReport) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	r.reports = append(r.reports, report)

	return nil
}

func (r *fakeComplianceRepo) ListReports(_ context.Context, reportType entity.ComplianceType, limit int) ([]*entity.ComplianceReport, error) {
	var matched []*entity.ComplianceReport
	for _, report := range r.reports {
		if reportType != "" && report.Type != reportType {
			continue
		}
		matched = append(matched, report)
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, nil
}

func (r *fakeComplianceRepo) ListOverdueRequests(_ context.Context, requestedBefore time.Time) ([]*entity.DataSubjectRequest, error) {
	var overdue []*entity.DataSubjectRequest
	for _, request := range r.requests {
		if request.RespondedAt == nil && request.RequestedAt.Before(requestedBefore) {
			overdue = append(overdue, request)
		}
	}

	return overdue, nil
}

func (r *fakeComplianceRepo) ListRequestsInWindow(_ context.Context, from, to time.Time, requestType string) ([]*entity.DataSubjectRequest, error) {
	var matched []*entity.DataSubjectRequest
	for _, request := range r.requests {
		if request.RequestedAt.Before(from) || request.RequestedAt.After(to) {
			continue
		}
		if requestType != "" && request.RequestType != requestType {
			continue
		}
		matched = append(matched, request)
	}

	return matched, nil
}

// --- transaction fakes ---

// fakeRepoFactory hands out the same in-memory stores inside and outside a
// transaction, so tests observe one consistent state.
type fakeRepoFactory struct {
	users       *fakeUserRepo
	sessions    *fakeSessionRepo
	credentials *fakeBiometricRepo
	connections *fakeConnectionRepo
	rbac        *fakeRBACRepo
	audits      *fakeAuditRepo
}

func newFakeRepoFactory() *fakeRepoFactory {
	return &fakeRepoFactory{
		users:       newFakeUserRepo(),
		sessions:    newFakeSessionRepo(),
		credentials: newFakeBiometricRepo(),
		connections: newFakeConnectionRepo(),
		rbac:        newFakeRBACRepo(),
		audits:      newFakeAuditRepo(),
	}
}

func (f *fakeRepoFactory) NewUserRepository() repository.UserRepository {
	return f.users
}

func (f *fakeRepoFactory) NewSessionRepository() repository.SessionRepository {
	return f.sessions
}

func (f *fakeRepoFactory) NewBiometricCredentialRepository() repository.BiometricCredentialRepository {
	return f.credentials
}

func (f *fakeRepoFactory) NewOAuthConnectionRepository() repository.OAuthConnectionRepository {
	return f.connections
}

func (f *fakeRepoFactory) NewRBACRepository() repository.RBACRepository {
	return f.rbac
}

func (f *fakeRepoFactory) NewAuditRepository() repository.AuditRepository {
	return f.audits
}

type fakeTxManager struct {
	factory *fakeRepoFactory
}

func (m *fakeTxManager) Execute(_ context.Context, fn func(repository.RepositoryFactory) error) error {
	return fn(m.factory)
}

// --- service fakes ---

type stubHasher struct{}

func (stubHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (stubHasher) Check(password, hash string) bool {
	return hash == "hashed:"+password
}

func (stubHasher) ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters long")
	}

	return nil
}

type stubTokenService struct {
	counter int
	refresh map[string]uuid.UUID
}

func newStubTokenService() *stubTokenService {
	return &stubTokenService{refresh: make(map[string]uuid.UUID)}
}

func (s *stubTokenService) GenerateTokens(userID uuid.UUID, _ []string) (string, string, error) {
	s.counter++
	accessToken := fmt.Sprintf("access-%d", s.counter)
	refreshToken := fmt.Sprintf("refresh-%d", s.counter)
	s.refresh[refreshToken] = userID

	return accessToken, refreshToken, nil
}

func (s *stubTokenService) ValidateAccessToken(string) (*service.Claims, error) {
	return nil, errors.New("not supported in tests")
}

func (s *stubTokenService) ValidateRefreshToken(tokenString string) (*service.Claims, error) {
	userID, ok := s.refresh[tokenString]
	if !ok {
		return nil, errors.New("unknown refresh token")
	}

	return &service.Claims{UserID: userID, Type: "refresh"}, nil
}

func (s *stubTokenService) HashToken(token string) string {
	return "sha:" + token
}

func (s *stubTokenService) GetAccessTokenDuration() time.Duration {
	return 15 * time.Minute
}

func (s *stubTokenService) GetRefreshTokenDuration() time.Duration {
	return 7 * 24 * time.Hour
}

type stubTOTPService struct{}

const validTOTPCode = "424242"

func (stubTOTPService) GenerateSecret(accountName string) (*service.TOTPEnrollment, error) {
	return &service.TOTPEnrollment{
		Secret:        "secret-" + accountName,
		EnrollmentURI: "otpauth://totp/propguard-test:" + accountName,
	}, nil
}

func (stubTOTPService) Validate(secret, code string) bool {
	return secret != "" && code == validTOTPCode
}

type fakeChallengeStore struct {
	clock      *movableClock
	challenges map[string]service.Challenge
}

func newFakeChallengeStore(clock *movableClock) *fakeChallengeStore {
	return &fakeChallengeStore{clock: clock, challenges: make(map[string]service.Challenge)}
}

func (s *fakeChallengeStore) Issue(_ context.Context, key string, challenge service.Challenge) error {
	s.challenges[key] = challenge

	return nil
}

func (s *fakeChallengeStore) Consume(_ context.Context, key string) (service.Challenge, bool) {
	challenge, ok := s.challenges[key]
	if !ok {
		return service.Challenge{}, false
	}
	delete(s.challenges, key)
	if s.clock.Now().After(challenge.ExpiresAt) {
		return service.Challenge{}, false
	}

	return challenge, true
}

// recordingAudit captures LogEvent inputs for services that treat auditing as
// a side effect.
type recordingAudit struct {
	events []usecase.LogEventInput
	err    error
}

func (a *recordingAudit) LogEvent(_ context.Context, input usecase.LogEventInput) error {
	if a.err != nil {
		return a.err
	}
	a.events = append(a.events, input)

	return nil
}

func (a *recordingAudit) QueryEvents(context.Context, repository.AuditFilter) (*usecase.AuditQueryOutput, error) {
	return &usecase.AuditQueryOutput{}, nil
}

func (a *recordingAudit) ExportEvents(context.Context, repository.AuditFilter, usecase.ExportFormat) (*usecase.ExportOutput, error) {
	return &usecase.ExportOutput{}, nil
}

func (a *recordingAudit) GetAuthMetrics(context.Context, time.Time, time.Time) (*usecase.AuthMetricsOutput, error) {
	return &usecase.AuthMetricsOutput{}, nil
}

func (a *recordingAudit) ListIncidents(context.Context, repository.IncidentFilter) ([]*entity.SecurityIncident, error) {
	return nil, nil
}

func (a *recordingAudit) lastAction() string {
	if len(a.events) == 0 {
		return ""
	}

	return a.events[len(a.events)-1].Action
}

func (a *recordingAudit) hasAction(action string) bool {
	for _, event := range a.events {
		if event.Action == action {
			return true
		}
	}

	return false
}

func (a *recordingAudit) findAction(action string) (usecase.LogEventInput, bool) {
	for _, event := range a.events {
		if event.Action == action {
			return event, true
		}
	}

	return usecase.LogEventInput{}, false
}

// stubAuthUsecase records CompleteLogin calls from the biometric and SSO flows.
type stubAuthUsecase struct {
	completions []completedLogin
}

type completedLogin struct {
	user   *entity.User
	method string
	device usecase.DeviceInfo
}

func (s *stubAuthUsecase) Register(context.Context, usecase.RegisterInput) (*usecase.RegisterOutput, error) {
	return nil, errors.New("not supported in tests")
}

func (s *stubAuthUsecase) Login(context.Context, usecase.LoginInput) (*usecase.LoginOutput, error) {
	return nil, errors.New("not supported in tests")
}

func (s *stubAuthUsecase) VerifyMFA(context.Context, usecase.VerifyMFAInput) (*usecase.LoginOutput, error) {
	return nil, errors.New("not supported in tests")
}

func (s *stubAuthUsecase) RefreshToken(context.Context, usecase.RefreshInput) (*usecase.RefreshOutput, error) {
	return nil, errors.New("not supported in tests")
}

func (s *stubAuthUsecase) Logout(context.Context, usecase.LogoutInput) error {
	return errors.New("not supported in tests")
}

func (s *stubAuthUsecase) UpdatePassword(context.Context, usecase.UpdatePasswordInput) error {
	return errors.New("not supported in tests")
}

func (s *stubAuthUsecase) ForgotPassword(context.Context, usecase.ForgotPasswordInput) (*usecase.ForgotPasswordOutput, error) {
	return nil, errors.New("not supported in tests")
}

func (s *stubAuthUsecase) ResetPassword(context.Context, usecase.ResetPasswordInput) error {
	return errors.New("not supported in tests")
}

func (s *stubAuthUsecase) CompleteLogin(_ context.Context, user *entity.User, method string, device usecase.DeviceInfo) (*usecase.LoginOutput, error) {
	s.completions = append(s.completions, completedLogin{user: user, method: method, device: device})

	return &usecase.LoginOutput{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		SessionToken: "session-token",
		User:         user,
	}, nil
}
