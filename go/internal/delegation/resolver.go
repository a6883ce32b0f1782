// Package delegation scripts the opening stance of staff personas who
// negotiate on the magistrate's behalf.
package delegation

import "github.com/huanshanxiaoyao/governor-game/go/internal/models"

type stanceKey struct {
	event models.EventType
	role  models.SpeakerRole
}

var stances = map[stanceKey]string{
	{models.EventTypeAnnexation, models.SpeakerRoleAdvisor}: "师爷奉县令之命前来：兼并农户田产有违朝廷律令，若再强买强占，县衙只得依法追究。还请员外以乡里安宁为重，即日停止收购。",
	{models.EventTypeAnnexation, models.SpeakerRoleDeputy}:  "县丞代县令传话：近来多有农户失田流离，县衙已记录在案。员外若肯收手，县衙自当体恤；若执意兼并，后果自负。",
	{models.EventTypeIrrigation, models.SpeakerRoleAdvisor}: "师爷奉县令之命前来：水利修成，最先受益的是员外名下的田地。县令望员外量力出资，共襄义举，县衙必当表彰。",
	{models.EventTypeIrrigation, models.SpeakerRoleDeputy}:  "县丞代县令传话：水渠工程已经动工，县库吃紧。员外若能分担些许工费，来年收成增益，远胜今日所出。",
	{models.EventTypeHiddenLand, models.SpeakerRoleAdvisor}: "师爷奉县令之命前来：清丈在即，隐匿田亩迟早败露。员外若主动申报，县衙可免追缴旧税，此乃两全之策。",
	{models.EventTypeHiddenLand, models.SpeakerRoleDeputy}:  "县丞代县令传话：鱼鳞册与实地多有出入，县衙不愿兴师动众。员外如实申报，此事便可了结。",
}

var fallbackStances = map[models.SpeakerRole]string{
	models.SpeakerRoleAdvisor: "师爷奉县令之命前来交涉，望员外以大局为重，与县衙共商妥善之策。",
	models.SpeakerRoleDeputy:  "县丞代县令传话，此事关乎一县民生，还请员外从长计议。",
}

var placeholders = map[models.SpeakerRole]string{
	models.SpeakerRoleAdvisor: "（委托师爷代为交涉）",
	models.SpeakerRoleDeputy:  "（委托县丞代为交涉）",
}

var labels = map[models.SpeakerRole]string{
	models.SpeakerRolePlayer:  "县令",
	models.SpeakerRoleAdvisor: "师爷",
	models.SpeakerRoleDeputy:  "县丞",
}

// Resolve returns the scripted opening stance for a delegated turn. It returns
// "" for PLAYER, whose text is authored by the player.
func Resolve(event models.EventType, role models.SpeakerRole) string {
	if !role.IsDelegate() {
		return ""
	}
	if text, ok := stances[stanceKey{event, role}]; ok {
		return text
	}
	return fallbackStances[role]
}

// Placeholder is what the player sees as their own turn when a delegate speaks.
func Placeholder(role models.SpeakerRole) string {
	return placeholders[role]
}

// Label is the display label of a speaker role.
func Label(role models.SpeakerRole) string {
	if label, ok := labels[role]; ok {
		return label
	}
	return labels[models.SpeakerRolePlayer]
}
