// Package schema maps source spreadsheet columns onto canonical fields and
// decodes rows into the typed records of package match.
package schema

// Field is a canonical column name.
type Field string

// candidate fields
const (
	FieldCandidateID    Field = "candidate_id"
	FieldName           Field = "name"
	FieldPhone          Field = "phone"
	FieldLocation       Field = "location"
	FieldSalary         Field = "salary"
	FieldCleanSalary    Field = "clean_salary"
	FieldCompany        Field = "company"
	FieldDesignation    Field = "designation"
	FieldCompositeKey   Field = "composite_key"
	FieldNameLocation   Field = "name_location"
	FieldLocationID     Field = "location_id"
	FieldCity           Field = "city"
	FieldCityID         Field = "city_id"
	FieldDepartment     Field = "department"
	FieldProduct        Field = "product"
	FieldExperience     Field = "experience"
	FieldEducation      Field = "education"
	FieldGraduationYear Field = "graduation_year"
)

// job fields
const (
	FieldJobID           Field = "job_id"
	FieldJobCompositeKey Field = "job_composite_key"
	FieldJobCompany      Field = "job_company"
	FieldJobDesignation  Field = "job_designation"
	FieldJobLocation     Field = "job_location"
	FieldJobHRName       Field = "job_hr_name"
	FieldJobStatus       Field = "job_status"
	FieldCompanyCode     Field = "company_code"
)

// call-log event fields
const (
	FieldStatusCode Field = "status_code"
	FieldActorCode  Field = "actor_code"
	FieldComment    Field = "comment"
	FieldEventTime  Field = "event_time"
)

// roster fields
const (
	FieldStatus      Field = "status"
	FieldContactDate Field = "contact_date"
	FieldContactTime Field = "contact_time"
	FieldRecruiter   Field = "recruiter"
	FieldCreatedDate Field = "created_date"
)

// location master fields
const (
	FieldMasterID Field = "master_id"
	FieldArea     Field = "area"
)

// Aliases lists the accepted source headers of every field, most preferred first.
// Headers are compared after normalization (see NormalizeHeader).
var Aliases = map[Field][]string{
	FieldCandidateID:    {"candidate_id", "finploy_candidate_id"},
	FieldName:           {"name", "name of candidate", "candidate name", "last_name"},
	FieldPhone:          {"clean_phone", "phone_clean", "contact", "phone", "phone_number", "mobile"},
	FieldLocation:       {"location", "current location", "candidate location"},
	FieldSalary:         {"salary", "current salary", "ctc", "curr salary"},
	FieldCleanSalary:    {"clean_salary"},
	FieldCompany:        {"current company", "company", "address2"},
	FieldDesignation:    {"current designation", "designation", "address3"},
	FieldCompositeKey:   {"composit_key", "composite_key", "address1"},
	FieldNameLocation:   {"name_location"},
	FieldLocationID:     {"finploy_id", "location_id", "finploy_loc_id"},
	FieldCity:           {"finploy_city", "city"},
	FieldCityID:         {"city_id", "finploy_city_id"},
	FieldDepartment:     {"department", "dept"},
	FieldProduct:        {"product"},
	FieldExperience:     {"experience", "meta-data"},
	FieldEducation:      {"education", "education 2"},
	FieldGraduationYear: {"graduation_year", "year"},

	FieldJobID:           {"job_id", "jobid", "id"},
	FieldJobCompositeKey: {"job_composit_key", "job_composite_key", "composit_key", "composite_key"},
	FieldJobCompany:      {"job_company", "company", "company name", "client"},
	FieldJobDesignation:  {"job_designation", "designation", "role"},
	FieldJobLocation:     {"job_location", "client location", "location"},
	FieldJobHRName:       {"job_hr_name", "hr name", "hr"},
	FieldJobStatus:       {"job_status", "status", "active"},
	FieldCompanyCode:     {"company_code", "companycode"},

	FieldStatusCode: {"status_code", "status", "disposition"},
	FieldActorCode:  {"actor_code", "user", "agent"},
	FieldComment:    {"comments", "comment"},
	FieldEventTime:  {"entry_date", "event_time", "timestamp", "last_local_call_time", "call_date"},

	FieldStatus:      {"remark", "status", "last_status"},
	FieldContactDate: {"date", "last_contact_date"},
	FieldContactTime: {"computer_time", "time"},
	FieldRecruiter:   {"rec", "recruiter"},
	FieldCreatedDate: {"created_date", "first_seen", "created"},

	FieldMasterID: {"id", "finploy_id", "location_id"},
	FieldArea:     {"area"},
}

// DescriptiveFields are carried opaquely from candidates through matches,
// events and roster rows.
var DescriptiveFields = []Field{
	FieldName, FieldLocation, FieldCleanSalary, FieldCompany, FieldDesignation,
	FieldNameLocation, FieldLocationID, FieldCity, FieldCityID, FieldCompositeKey,
	FieldDepartment, FieldProduct, FieldExperience, FieldEducation, FieldGraduationYear,
}
