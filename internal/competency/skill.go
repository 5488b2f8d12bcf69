package competency

// Skill is either an unresolved custom claim or a competency resolved to a
// taxonomy entry. The set of implementations is closed: *Claim and *Mapped.
type Skill interface {
	SkillName() string
	SkillConfidence() float64
	isSkill()
}

func (c *Claim) SkillName() string        { return c.Name }
func (c *Claim) SkillConfidence() float64 { return c.Confidence }
func (*Claim) isSkill()                   {}

func (m *Mapped) SkillName() string        { return m.Title }
func (m *Mapped) SkillConfidence() float64 { return m.Confidence }
func (*Mapped) isSkill()                   {}
