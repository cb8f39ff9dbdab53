package medicalhistory

// Question is one item of the donor questionnaire. Answers are stored under
// Column, free text under Column + "_remarks".
type Question struct {
	Number  int
	Column  string
	Section string
	Text    string
}

// RemarksColumn is the column holding the remarks for q.
func (q Question) RemarksColumn() string { return q.Column + "_remarks" }

const QuestionCount = 37

var Questions = [QuestionCount]Question{
	{1, "feels_well", "general", "Do you feel well and healthy today?"},
	{2, "previously_refused", "general", "Have you ever been refused as a blood donor or told not to donate blood for any reasons?"},
	{3, "testing_purpose_only", "general", "Are you giving blood only because you want to be tested for HIV or the AIDS virus or Hepatitis virus?"},
	{4, "understands_transmission_risk", "general", "Are you aware that an HIV/Hepatitis infected person can still transmit the virus despite a negative HIV/Hepatitis test?"},
	{5, "recent_alcohol_consumption", "general", "Have you within the last 12 HOURS had taken liquor, beer or any drinks with alcohol?"},
	{6, "recent_aspirin", "general", "In the last 3 DAYS have you taken aspirin?"},
	{7, "recent_medication", "general", "In the past 4 WEEKS have you taken any medications and/or vaccinations?"},
	{8, "recent_donation", "general", "In the past 3 MONTHS have you donated whole blood, platelets or plasma?"},
	{9, "zika_travel", "past_6_months", "Been to any places in the Philippines or countries infected with ZIKA Virus?"},
	{10, "zika_contact", "past_6_months", "Had sexual contact with a person who was confirmed to have ZIKA Virus Infection?"},
	{11, "zika_sexual_contact", "past_6_months", "Had sexual contact with a person who has been to any places in the Philippines or countries infected with ZIKA Virus?"},
	{12, "blood_transfusion", "past_12_months", "Received blood, blood products and/or had tissue/organ transplant or graft?"},
	{13, "surgery_dental", "past_12_months", "Had surgical operation or dental extraction?"},
	{14, "tattoo_piercing", "past_12_months", "Had a tattoo applied, ear and body piercing, acupuncture, needle stick injury or accidental contact with blood?"},
	{15, "risky_sexual_contact", "past_12_months", "Had sexual contact with high risk individuals or in exchange for material or monetary gain?"},
	{16, "unsafe_sex", "past_12_months", "Engaged in unprotected, unsafe or casual sex?"},
	{17, "hepatitis_contact", "past_12_months", "Had jaundice/hepatitis/personal contact with person who had hepatitis?"},
	{18, "imprisonment", "past_12_months", "Been incarcerated, jailed or imprisoned?"},
	{19, "uk_europe_stay", "past_12_months", "Spent time or have relatives in the United Kingdom or Europe?"},
	{20, "foreign_travel", "ever", "Travelled or lived outside of your place of residence or outside the Philippines?"},
	{21, "drug_use", "ever", "Taken prohibited drugs (orally, by nose, or by injection)?"},
	{22, "clotting_factor", "ever", "Used clotting factor concentrates?"},
	{23, "positive_disease_test", "ever", "Had a positive test for the HIV virus, Hepatitis virus, Syphilis or Malaria?"},
	{24, "malaria_history", "ever", "Had Malaria or Hepatitis in the past?"},
	{25, "std_history", "ever", "Had or was treated for genital wart, syphilis, gonorrhea or other sexually transmitted diseases?"},
	{26, "cancer_blood_disease", "conditions", "Cancer, blood disease or bleeding disorder (haemophilia)?"},
	{27, "heart_disease", "conditions", "Heart disease/surgery, rheumatic fever or chest pains?"},
	{28, "lung_disease", "conditions", "Lung disease, tuberculosis or asthma?"},
	{29, "kidney_disease", "conditions", "Kidney disease, thyroid disease, diabetes, epilepsy?"},
	{30, "chicken_pox", "conditions", "Chicken pox and/or cold sores?"},
	{31, "chronic_illness", "conditions", "Any other chronic medical condition or surgical operations?"},
	{32, "recent_fever", "conditions", "Have you recently had rash and/or fever? Was/were this/these also associated with arthralgia or arthritis or conjunctivitis?"},
	{33, "pregnancy_history", "female_donors", "Are you currently pregnant or have you ever been pregnant?"},
	{34, "last_childbirth", "female_donors", "When was your last childbirth?"},
	{35, "recent_miscarriage", "female_donors", "In the past 1 YEAR, did you have a miscarriage or abortion?"},
	{36, "breastfeeding", "female_donors", "Are you currently breastfeeding?"},
	{37, "last_menstruation", "female_donors", "When was your last menstrual period?"},
}

var questionByColumn = func() map[string]Question {
	m := make(map[string]Question, QuestionCount)
	for _, q := range Questions {
		m[q.Column] = q
	}
	return m
}()

// ColumnFor returns the answer column of question n (1-based).
func ColumnFor(n int) (string, bool) {
	if n < 1 || n > QuestionCount {
		return "", false
	}
	return Questions[n-1].Column, true
}
