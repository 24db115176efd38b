// Package pipeline holds the project stages that come before the bay-plan
// reconstruction: preparing the ROI and boss report, and matching bosses against
// cut-typology templates.
package pipeline
