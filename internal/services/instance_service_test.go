package services

import (
	"context"
	"testing"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/roles"
	"github.com/google/uuid"
)

func TestSaveResponsesCompletesSelfEvaluation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	patient := env.newUser(t, "p@example.com", roles.Patient)
	other := env.newUser(t, "o@example.com", roles.Patient)
	tmpl := env.createTemplate(t, templateRequest("Diabetes Check", "SELF", "DOCTOR"))
	inst := env.instanceOf(t, patient.ID(), tmpl.ID)

	form, err := env.instances.SaveResponses(ctx, patient, inst.ID, &dto.SaveResponsesRequest{Responses: map[string]any{"thirst": "Yes"}})
	if err != nil {
		t.Fatalf("SaveResponses (draft): %v", err)
	}
	if form.State() != models.StateDraft {
		t.Fatalf("state: want=%s got=%s", models.StateDraft, form.State())
	}

	form, err = env.instances.SaveResponses(ctx, patient, inst.ID, &dto.SaveResponsesRequest{Responses: map[string]any{"thirst": "No"}, Complete: true})
	if err != nil {
		t.Fatalf("SaveResponses (complete): %v", err)
	}
	if form.IsDraft || form.CompletedDate == nil || form.State() != models.StateCompleted {
		t.Fatalf("form not completed: draft=%v completed=%v", form.IsDraft, form.CompletedDate)
	}
	reloaded := env.instanceOf(t, patient.ID(), tmpl.ID)
	if reloaded.CompletionDate == nil || reloaded.IsDraft {
		t.Fatalf("instance not completed: completion=%v draft=%v", reloaded.CompletionDate, reloaded.IsDraft)
	}
	rec := env.storedRecommendation(t, inst.ID)
	if rec.IsDraft || rec.UpdatedByID == nil || *rec.UpdatedByID != patient.ID() || rec.IsSigned {
		t.Fatalf("completion must finalize the recommendation without signing it: %+v", rec)
	}

	_, err = env.instances.SaveResponses(ctx, patient, inst.ID, &dto.SaveResponsesRequest{Responses: map[string]any{"thirst": "Yes"}})
	wantErr(t, err, ErrEvaluationCompleted)

	_, err = env.instances.SaveResponses(ctx, other, inst.ID, &dto.SaveResponsesRequest{Responses: map[string]any{"x": 1}})
	wantErr(t, err, ErrPermissionDenied)

	_, err = env.instances.SaveResponses(ctx, patient, inst.ID, &dto.SaveResponsesRequest{})
	wantValidation(t, err, "responses")

	_, err = env.instances.SaveResponses(ctx, patient, uuid.New(), &dto.SaveResponsesRequest{Responses: map[string]any{}})
	wantErr(t, err, ErrInstanceNotFound)
}

func TestEvaluationTypeGatesResponses(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	patient := env.newUser(t, "p@example.com", roles.Patient)
	doctor := env.newUser(t, "doc@example.com", roles.Doctor)
	self := env.createTemplate(t, templateRequest("Self", "SELF", "DOCTOR"))
	professional := env.createTemplate(t, templateRequest("Clinic", "PROFESSIONAL", "DOCTOR"))

	_, err := env.instances.SaveResponses(ctx, patient, env.instanceOf(t, patient.ID(), professional.ID).ID,
		&dto.SaveResponsesRequest{Responses: map[string]any{"a": 1}})
	wantValidation(t, err, "responses")

	_, err = env.instances.SaveProfessionalEvaluation(ctx, doctor, env.instanceOf(t, patient.ID(), self.ID).ID,
		&dto.ProfessionalEvaluationRequest{ProfessionalResponses: map[string]any{"a": 1}})
	wantValidation(t, err, "professional_responses")
}

func TestBothEvaluationNeedsBothParts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	patient := env.newUser(t, "p@example.com", roles.Patient)
	psych := env.newUser(t, "psy@example.com", roles.Psychologist)
	tmpl := env.createTemplate(t, templateRequest("Mental Wellbeing", "BOTH", "PSYCHOLOGIST"))

	t.Run("patient first", func(t *testing.T) {
		inst := env.instanceOf(t, patient.ID(), tmpl.ID)
		_, err := env.instances.SaveResponses(ctx, patient, inst.ID, &dto.SaveResponsesRequest{Responses: map[string]any{"mood": 4}, Complete: true})
		wantValidation(t, err, "professional_responses")

		form, err := env.instances.SaveResponses(ctx, patient, inst.ID, &dto.SaveResponsesRequest{Responses: map[string]any{"mood": 4}})
		if err != nil {
			t.Fatalf("SaveResponses: %v", err)
		}
		if form.State() != models.StateDraft {
			t.Fatalf("state: want=%s got=%s", models.StateDraft, form.State())
		}

		form, err = env.instances.SaveProfessionalEvaluation(ctx, psych, inst.ID, &dto.ProfessionalEvaluationRequest{
			ProfessionalResponses: map[string]any{"diagnosis": "stable"},
			Complete:              true,
		})
		if err != nil {
			t.Fatalf("SaveProfessionalEvaluation: %v", err)
		}
		if form.State() != models.StateCompleted {
			t.Fatalf("state: want=%s got=%s", models.StateCompleted, form.State())
		}
		rec := env.storedRecommendation(t, inst.ID)
		if rec.IsDraft || !rec.IsSigned || rec.UpdatedByID == nil || *rec.UpdatedByID != psych.ID() {
			t.Fatalf("recommendation not finalized by the clinician: %+v", rec)
		}
	})

	t.Run("professional first", func(t *testing.T) {
		other := env.newUser(t, "p2@example.com", roles.Patient)
		inst := env.instanceOf(t, other.ID(), tmpl.ID)
		complete := &dto.ProfessionalEvaluationRequest{ProfessionalResponses: map[string]any{"diagnosis": "stable"}, Complete: true}
		_, err := env.instances.SaveProfessionalEvaluation(ctx, psych, inst.ID, complete)
		wantValidation(t, err, "responses")

		form, err := env.instances.SaveProfessionalEvaluation(ctx, psych, inst.ID, &dto.ProfessionalEvaluationRequest{
			ProfessionalResponses: map[string]any{"diagnosis": "stable"},
		})
		if err != nil {
			t.Fatalf("SaveProfessionalEvaluation (draft): %v", err)
		}
		if form.State() != models.StateDraft {
			t.Fatalf("state: want=%s got=%s", models.StateDraft, form.State())
		}

		form, err = env.instances.SaveResponses(ctx, other, inst.ID, &dto.SaveResponsesRequest{Responses: map[string]any{"mood": 2}, Complete: true})
		if err != nil {
			t.Fatalf("SaveResponses: %v", err)
		}
		if form.State() != models.StateCompleted {
			t.Fatalf("state: want=%s got=%s", models.StateCompleted, form.State())
		}
		rec := env.storedRecommendation(t, inst.ID)
		if rec.IsDraft || rec.UpdatedByID == nil || *rec.UpdatedByID != other.ID() {
			t.Fatalf("recommendation must leave draft with the completion: %+v", rec)
		}
		if rec.IsSigned || rec.SignedByID != nil {
			t.Fatalf("a patient must not sign the recommendation: %+v", rec)
		}
	})
}

func TestProfessionalCompletionFinalizesRecommendation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	patient := env.newUser(t, "p@example.com", roles.Patient)
	doctor := env.newUser(t, "doc@example.com", roles.Doctor)
	tmpl := env.createTemplate(t, templateRequest("Physical Assessment", "PROFESSIONAL", "DOCTOR"))
	inst := env.instanceOf(t, patient.ID(), tmpl.ID)

	form, rec, err := env.instances.EnsureDetails(ctx, inst.ID)
	if err != nil {
		t.Fatalf("EnsureDetails: %v", err)
	}
	if !form.IsDraft || !rec.IsDraft || rec.StatusColor != models.StatusGray {
		t.Fatalf("ensured rows must be gray drafts: form=%+v rec=%+v", form, rec)
	}

	form, err = env.instances.SaveProfessionalEvaluation(ctx, doctor, inst.ID, &dto.ProfessionalEvaluationRequest{
		ProfessionalResponses: map[string]any{"diagnosis": "fine", "risk_level": "low"},
		Complete:              true,
	})
	if err != nil {
		t.Fatalf("SaveProfessionalEvaluation: %v", err)
	}
	if form.IsDraft || form.CompletedDate == nil {
		t.Fatalf("form: want is_draft=false with completed_date, got draft=%v date=%v", form.IsDraft, form.CompletedDate)
	}

	var stored models.Recommendation
	if err := env.db.First(&stored, "instance_id = ?", inst.ID).Error; err != nil {
		t.Fatalf("load recommendation: %v", err)
	}
	if stored.IsDraft {
		t.Fatalf("recommendation still draft")
	}
	if stored.UpdatedByID == nil || *stored.UpdatedByID != doctor.ID() {
		t.Fatalf("updated_by: want=%s got=%v", doctor.ID(), stored.UpdatedByID)
	}
	if !stored.IsSigned || stored.SignedAt == nil {
		t.Fatalf("recommendation not signed: %+v", stored)
	}
	if stored.ID != rec.ID {
		t.Fatalf("completion must reuse the ensured recommendation")
	}
}

func TestEditorGateFollowsAllowedRoles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	patient := env.newUser(t, "p@example.com", roles.Patient)
	doctor := env.newUser(t, "doc@example.com", roles.Doctor)
	nurse := env.newUser(t, "nurse@example.com", roles.Nurse)
	admin := env.newUser(t, testAdminEmail, roles.Admin)
	coordinator := env.newUser(t, "coord@example.com", roles.Coordinator)

	req := templateRequest("Clinic", "PROFESSIONAL", "DOCTOR", "NURSE")
	tmpl := env.createTemplate(t, req)
	inst := env.instanceOf(t, patient.ID(), tmpl.ID)
	eval := &dto.ProfessionalEvaluationRequest{ProfessionalResponses: map[string]any{"notes": "ok"}}

	if _, err := env.instances.SaveProfessionalEvaluation(ctx, doctor, inst.ID, eval); err != nil {
		t.Fatalf("doctor before narrowing: %v", err)
	}
	editable, err := env.instances.ListEditable(ctx, doctor)
	if err != nil {
		t.Fatalf("ListEditable: %v", err)
	}
	if len(editable) != 5 {
		t.Fatalf("doctor editable instances: want=5 got=%d", len(editable))
	}

	req.AllowedEditorRoles = []string{"NURSE"}
	updated, err := env.templates.Update(ctx, SystemActor(), tmpl.ID, req)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	_, err = env.instances.SaveProfessionalEvaluation(ctx, doctor, inst.ID, eval)
	wantErr(t, err, ErrPermissionDenied)
	if got := env.count(t, &models.InstanceEditor{}, "user_id = ?", doctor.ID()); got != 0 {
		t.Fatalf("doctor editor bindings after narrowing: want=0 got=%d", got)
	}
	if editable, _ = env.instances.ListEditable(ctx, doctor); len(editable) != 0 {
		t.Fatalf("doctor editable after narrowing: want=0 got=%d", len(editable))
	}

	if _, err := env.instances.SaveProfessionalEvaluation(ctx, nurse, inst.ID, eval); err != nil {
		t.Fatalf("nurse: %v", err)
	}
	if _, err := env.instances.SaveProfessionalEvaluation(ctx, admin, inst.ID, eval); err != nil {
		t.Fatalf("admin: %v", err)
	}
	for _, staff := range []*Actor{admin, coordinator} {
		if !CanEdit(staff, updated) {
			t.Fatalf("%s lost edit rights", staff.Role)
		}
		list, err := env.instances.ListEditable(ctx, staff)
		if err != nil {
			t.Fatalf("ListEditable(%s): %v", staff.Role, err)
		}
		if len(list) != 5 {
			t.Fatalf("%s editable: want=5 got=%d", staff.Role, len(list))
		}
	}
	if editable, _ = env.instances.ListEditable(ctx, patient); len(editable) != 0 {
		t.Fatalf("patient editable: want=0 got=%d", len(editable))
	}

	req.IsReadonly = true
	if _, err := env.templates.Update(ctx, SystemActor(), tmpl.ID, req); err != nil {
		t.Fatalf("Update (readonly): %v", err)
	}
	_, err = env.instances.SaveProfessionalEvaluation(ctx, admin, inst.ID, eval)
	wantErr(t, err, ErrPermissionDenied)
	if got := env.count(t, &models.InstanceEditor{}, ""); got != 0 {
		t.Fatalf("readonly template keeps editor bindings: %d", got)
	}
}

func TestInstanceVisibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	patient := env.newUser(t, "p@example.com", roles.Patient)
	other := env.newUser(t, "o@example.com", roles.Patient)
	doctor := env.newUser(t, "doc@example.com", roles.Doctor)
	tmpl := env.createTemplate(t, templateRequest("Diabetes Check", "SELF"))
	inactive := templateRequest("Archived", "SELF")
	inactive.IsActive = boolPtr(false)
	env.createTemplate(t, inactive)
	inst := env.instanceOf(t, patient.ID(), tmpl.ID)

	if _, err := env.instances.Get(ctx, patient, inst.ID); err != nil {
		t.Fatalf("owner Get: %v", err)
	}
	_, err := env.instances.Get(ctx, other, inst.ID)
	wantErr(t, err, ErrPermissionDenied)
	if _, err := env.instances.Get(ctx, doctor, inst.ID); err != nil {
		t.Fatalf("doctor Get: %v", err)
	}

	list, err := env.instances.ListForUser(ctx, patient, patient.ID())
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(list) != 1 || list[0].TemplateID != tmpl.ID {
		t.Fatalf("own list: want only the active template, got %d", len(list))
	}
	_, err = env.instances.ListForUser(ctx, other, patient.ID())
	wantErr(t, err, ErrPermissionDenied)
	if _, err := env.instances.ListForUser(ctx, doctor, patient.ID()); err != nil {
		t.Fatalf("doctor ListForUser: %v", err)
	}
}

func TestRenderInstanceReadonlyFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	patient := env.newUser(t, "p@example.com", roles.Patient)
	doctor := env.newUser(t, "doc@example.com", roles.Doctor)
	tmpl := env.createTemplate(t, templateRequest("Diabetes Check", "SELF", "DOCTOR"))
	inst := env.instanceOf(t, patient.ID(), tmpl.ID)
	form, rec, err := env.instances.EnsureDetails(ctx, inst.ID)
	if err != nil {
		t.Fatalf("EnsureDetails: %v", err)
	}

	asPatient, err := env.renderer.Instance(ctx, patient, inst, form, rec, nil)
	if err != nil {
		t.Fatalf("Instance: %v", err)
	}
	asDoctor, err := env.renderer.Instance(ctx, doctor, inst, form, rec, nil)
	if err != nil {
		t.Fatalf("Instance: %v", err)
	}
	if len(asPatient.ReadonlyFields) != len(alwaysReadonlyFields)+len(mutableInstanceFields) {
		t.Fatalf("patient readonly fields: got %v", asPatient.ReadonlyFields)
	}
	if len(asDoctor.ReadonlyFields) != len(alwaysReadonlyFields) {
		t.Fatalf("doctor readonly fields: got %v", asDoctor.ReadonlyFields)
	}
	if asPatient.State != models.StateNotStarted || asPatient.Status.Color != models.StatusGray {
		t.Fatalf("fresh instance: state=%s color=%s", asPatient.State, asPatient.Status.Color)
	}
	if asPatient.ProfessionalInfo != nil {
		t.Fatalf("untouched recommendation must not expose professional info")
	}
}

func TestSaveTrainingResponses(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	patient := env.newUser(t, "p@example.com", roles.Patient)
	doctor := env.newUser(t, "doc@example.com", roles.Doctor)
	tmpl := env.createTemplate(t, templateRequest("Diabetes Check", "SELF", "DOCTOR"))
	inst := env.instanceOf(t, patient.ID(), tmpl.ID)

	if _, err := env.instances.SaveTrainingResponses(ctx, patient, inst.ID, map[string]any{"node-1": "watched"}); err != nil {
		t.Fatalf("SaveTrainingResponses: %v", err)
	}
	reloaded := env.instanceOf(t, patient.ID(), tmpl.ID)
	if len(reloaded.Responses) == 0 {
		t.Fatalf("training responses not stored")
	}
	_, err := env.instances.SaveTrainingResponses(ctx, doctor, inst.ID, map[string]any{"x": 1})
	wantErr(t, err, ErrPermissionDenied)
}
