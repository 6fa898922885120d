package business

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"lifesim/internal/randsrc"
	"lifesim/internal/rules"
)

const (
	RoleWorker     Role = "worker"
	RoleTechnician Role = "technician"
	RoleSales      Role = "salesperson"
	RoleManager    Role = "manager"
	RoleAccountant Role = "accountant"
)

const (
	MinStars        = 1
	MaxStars        = 5
	MaxProductivity = 2.0
)

// RoleSpec is the base data of one employee role. Output weights the role's
// contribution to throughput; Cap <= 0 means no per-role limit.
type RoleSpec struct {
	BaseSalary   float64 `json:"base_salary" yaml:"base_salary"`
	Productivity float64 `json:"productivity" yaml:"productivity"`
	Output       float64 `json:"output" yaml:"output"`
	Cap          int     `json:"cap" yaml:"cap"`
}

func DefaultRoles() map[Role]RoleSpec {
	return map[Role]RoleSpec{
		RoleWorker:     {BaseSalary: 2500, Productivity: 1.0, Output: 1.0},
		RoleTechnician: {BaseSalary: 3500, Productivity: 1.1, Output: 1.3},
		RoleSales:      {BaseSalary: 2800, Productivity: 1.0, Output: 0.6, Cap: 5},
		RoleManager:    {BaseSalary: 5000, Productivity: 1.0, Output: 0.3, Cap: 2},
		RoleAccountant: {BaseSalary: 4000, Productivity: 1.0, Output: 0, Cap: 1},
	}
}

// Staffing summarizes what the current team can produce.
type Staffing struct {
	Throughput      float64      `json:"throughput"`
	Efficiency      float64      `json:"efficiency"`
	Counted         int          `json:"counted"`
	OverCap         int          `json:"over_cap"`
	MissingRoles    []Role       `json:"missing_roles"`
	AccountantStars int          `json:"accountant_stars"`
	HeadcountByRole map[Role]int `json:"headcount_by_role"`
}

func (e *Engine) roleSpec(role Role) RoleSpec {
	if spec, ok := e.cfg.Roles[role]; ok {
		return spec
	}
	return e.cfg.Roles[RoleWorker]
}

func (e *Engine) roleCap(b Business, role Role) int {
	if c, ok := b.RoleCaps[role]; ok {
		return c
	}
	return e.roleSpec(role).Cap
}

// EmployeeThroughput is the units per tick one employee adds.
func (e *Engine) EmployeeThroughput(emp Employee) float64 {
	spec := e.roleSpec(emp.Role)
	prod := clampFloat(zeroIfBad(emp.Productivity), 0, MaxProductivity)
	stars := min(max(emp.Stars, MinStars), MaxStars)
	return e.cfg.UnitsPerWorker * spec.Output * prod * (1 + e.cfg.StarBonus*float64(stars-1))
}

// Staffing counts each role's most productive employees up to the role cap
// and penalizes every required role left empty.
func (e *Engine) Staffing(b Business) Staffing {
	byRole := map[Role][]Employee{}
	for _, emp := range b.Employees {
		byRole[emp.Role] = append(byRole[emp.Role], emp)
	}
	roles := make([]Role, 0, len(byRole))
	for r := range byRole {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })

	st := Staffing{HeadcountByRole: map[Role]int{}, MissingRoles: []Role{}}
	for _, role := range roles {
		emps := byRole[role]
		sort.SliceStable(emps, func(i, j int) bool {
			return e.EmployeeThroughput(emps[i]) > e.EmployeeThroughput(emps[j])
		})
		limit := e.roleCap(b, role)
		for i, emp := range emps {
			if limit > 0 && i >= limit {
				st.OverCap++
				continue
			}
			st.Counted++
			st.Throughput += e.EmployeeThroughput(emp)
			if role == RoleAccountant && emp.Stars > st.AccountantStars {
				st.AccountantStars = min(emp.Stars, MaxStars)
			}
		}
		st.HeadcountByRole[role] = len(emps)
	}

	for _, role := range b.RequiredRoles {
		if st.HeadcountByRole[role] == 0 {
			st.MissingRoles = append(st.MissingRoles, role)
		}
	}
	st.Efficiency = math.Max(e.cfg.MinStaffingEfficiency, 1-e.cfg.MissingRolePenalty*float64(len(st.MissingRoles)))
	return st
}

// ValidateHire checks the headcount limit and the role cap.
func (e *Engine) ValidateHire(b Business, role Role) rules.Validation {
	count := 0
	for _, emp := range b.Employees {
		if emp.Role == role {
			count++
		}
	}
	limit := e.roleCap(b, role)
	details := map[string]any{
		"role":          string(role),
		"employees":     len(b.Employees),
		"max_employees": b.MaxEmployees,
		"role_count":    count,
		"role_cap":      limit,
		"status":        string(b.Status),
	}
	if _, ok := e.cfg.Roles[role]; !ok {
		return rules.Reject(rules.CodeUnknownRole, "unknown role", details)
	}
	if b.Status == StatusFrozen {
		return rules.Reject(rules.CodeBusinessInactive, "business is frozen", details)
	}
	if b.MaxEmployees > 0 && len(b.Employees) >= b.MaxEmployees {
		return rules.Reject(rules.CodeBusinessFull, "business is at max employees", details)
	}
	if limit > 0 && count >= limit {
		return rules.Reject(rules.CodeRoleCapReached, "role cap reached", details)
	}
	return rules.OK(details)
}

// Candidate is a hireable applicant; it becomes an Employee on Hire.
type Candidate struct {
	ID           string  `json:"id"`
	Role         Role    `json:"role"`
	Salary       float64 `json:"salary"`
	Productivity float64 `json:"productivity"`
	Stars        int     `json:"stars"`
}

// GenerateCandidates draws n applicants cycling through roles. Salary and
// productivity vary around the role's base and scale with stars.
func (e *Engine) GenerateCandidates(rng randsrc.Source, roles []Role, n int) []Candidate {
	if n <= 0 {
		return []Candidate{}
	}
	if len(roles) == 0 {
		roles = e.Roles()
	}
	out := make([]Candidate, 0, n)
	for i := 0; i < n; i++ {
		role := roles[i%len(roles)]
		spec := e.roleSpec(role)
		stars := MinStars + randsrc.IntnOr(rng, MaxStars-MinStars+1, 0)
		starScale := 1 + e.cfg.StarBonus*float64(stars-1)
		salary := spec.BaseSalary * (0.85 + 0.3*randsrc.Float64Or(rng, 0.5)) * starScale
		prod := spec.Productivity * (0.8 + 0.4*randsrc.Float64Or(rng, 0.5))
		out = append(out, Candidate{
			ID:           candidateID(rng),
			Role:         role,
			Salary:       math.Round(salary),
			Productivity: math.Round(clampFloat(prod, 0, MaxProductivity)*100) / 100,
			Stars:        stars,
		})
	}
	return out
}

// Roles lists the configured roles in name order.
func (e *Engine) Roles() []Role {
	out := make([]Role, 0, len(e.cfg.Roles))
	for r := range e.cfg.Roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func candidateID(rng randsrc.Source) string {
	if rng != nil {
		if id, err := uuid.NewRandomFromReader(rng); err == nil {
			return id.String()
		}
	}
	return uuid.NewString()
}

// Hire validates and appends the candidate. The input business is not
// modified.
func (e *Engine) Hire(b Business, c Candidate, year int) (Business, rules.Validation) {
	v := e.ValidateHire(b, c.Role)
	if !v.IsValid {
		return b, v
	}
	out := b.Clone()
	out.Employees = append(out.Employees, Employee{
		ID:           c.ID,
		Role:         c.Role,
		Salary:       math.Max(0, zeroIfBad(c.Salary)),
		Productivity: clampFloat(zeroIfBad(c.Productivity), 0, MaxProductivity),
		Stars:        min(max(c.Stars, MinStars), MaxStars),
		HireYear:     year,
	})
	return out, v
}
