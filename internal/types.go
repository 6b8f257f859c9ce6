package internal

type FieldName string

const (
	FieldCustomerName        FieldName = "name"
	FieldPhone               FieldName = "phone"
	FieldEmail               FieldName = "email"
	FieldWhatsApp            FieldName = "whatsapp"
	FieldGender              FieldName = "gender"
	FieldCity                FieldName = "city"
	FieldBirthday            FieldName = "birthday"
	FieldBirthMonth          FieldName = "birthMonth"
	FieldBirthDay            FieldName = "birthDay"
	FieldReferralSource      FieldName = "referralSource"
	FieldLocationDescription FieldName = "locationDescription"
	FieldNationalID          FieldName = "nationalId"
	FieldReferredBy          FieldName = "referredBy"
	FieldColorTag            FieldName = "colorTag"
	FieldNotes               FieldName = "notes"
	FieldPoints              FieldName = "points"
	FieldTotalSpent          FieldName = "totalSpent"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

type ColorTag string

const (
	ColorTagNew        ColorTag = "new"
	ColorTagVIP        ColorTag = "vip"
	ColorTagComplainer ColorTag = "complainer"
	ColorTagPurchased  ColorTag = "purchased"
)

type Customer struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Phone               string   `json:"phone"`
	Email               string   `json:"email"`
	WhatsApp            string   `json:"whatsapp"`
	Gender              string   `json:"gender"`
	City                string   `json:"city"`
	BirthMonth          string   `json:"birth_month"`
	BirthDay            string   `json:"birth_day"`
	ReferralSource      string   `json:"referral_source"`
	LocationDescription string   `json:"location_description"`
	NationalID          string   `json:"national_id"`
	ReferredBy          string   `json:"referred_by"`
	ColorTag            string   `json:"color_tag"`
	Notes               []string `json:"notes"`
	Points              float64  `json:"points"`
	TotalSpent          float64  `json:"total_spent"`
	IsActive            bool     `json:"is_active"`
	CreatedAt           string   `json:"created_at,omitempty"`
}

// CustomerPatch carries a partial update. Nil members are left untouched by the store.
type CustomerPatch struct {
	Email               *string `json:"email,omitempty"`
	WhatsApp            *string `json:"whatsapp,omitempty"`
	Gender              *string `json:"gender,omitempty"`
	City                *string `json:"city,omitempty"`
	BirthMonth          *string `json:"birth_month,omitempty"`
	BirthDay            *string `json:"birth_day,omitempty"`
	ReferralSource      *string `json:"referral_source,omitempty"`
	LocationDescription *string `json:"location_description,omitempty"`
	NationalID          *string `json:"national_id,omitempty"`
	ReferredBy          *string `json:"referred_by,omitempty"`
}

func (p CustomerPatch) Empty() bool {
	return len(p.Fields()) == 0
}

// Fields lists the fields set on the patch in a stable order.
func (p CustomerPatch) Fields() []FieldName {
	out := []FieldName{}
	add := func(f FieldName, v *string) {
		if v != nil {
			out = append(out, f)
		}
	}
	add(FieldEmail, p.Email)
	add(FieldWhatsApp, p.WhatsApp)
	add(FieldGender, p.Gender)
	add(FieldCity, p.City)
	add(FieldBirthMonth, p.BirthMonth)
	add(FieldBirthDay, p.BirthDay)
	add(FieldReferralSource, p.ReferralSource)
	add(FieldLocationDescription, p.LocationDescription)
	add(FieldNationalID, p.NationalID)
	add(FieldReferredBy, p.ReferredBy)
	return out
}

// Apply copies the set members of p onto c.
func (p CustomerPatch) Apply(c *Customer) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&c.Email, p.Email)
	set(&c.WhatsApp, p.WhatsApp)
	set(&c.Gender, p.Gender)
	set(&c.City, p.City)
	set(&c.BirthMonth, p.BirthMonth)
	set(&c.BirthDay, p.BirthDay)
	set(&c.ReferralSource, p.ReferralSource)
	set(&c.LocationDescription, p.LocationDescription)
	set(&c.NationalID, p.NationalID)
	set(&c.ReferredBy, p.ReferredBy)
}

type Actor struct {
	ID   string
	Role string
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

type ImportRunRow struct {
	ID             string
	EmailID        *int
	Source         string
	ActorID        string
	ActorRole      string
	TotalRows      int
	DetectedFields int
	IssueCount     int
	DuplicateCount int
	Created        int
	Updated        int
	Skipped        int
	Failed         int
	CreatedAt      string
}

type OutcomeExportRow struct {
	RunID     string
	RowNumber int
	Action    string
	Success   bool
	Skipped   bool
	Reason    string
	Error     string
	RecordRef string
}
