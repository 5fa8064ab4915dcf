package entity

import (
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-robovac/internal/robovac"
	"github.com/nerrad567/gray-logic-robovac/internal/statecache"
)

// Attribute names exposed alongside the vacuum state.
const (
	AttrError        = "error"
	AttrCleaningArea = "cleaning_area"
	AttrCleaningTime = "cleaning_time"
	AttrAutoReturn   = "auto_return"
	AttrDoNotDisturb = "do_not_disturb"
	AttrBoostIQ      = "boost_iq"
	AttrConsumables  = "consumables"
	AttrMode         = "mode"
)

// VacuumState is the presentable state of a vacuum entity.
type VacuumState struct {
	UniqueID     string           `json:"unique_id"`
	Name         string           `json:"name"`
	Model        string           `json:"model"`
	Available    bool             `json:"available"`
	Activity     robovac.Activity `json:"activity"`
	Status       string           `json:"status,omitempty"`
	FanSpeed     string           `json:"fan_speed,omitempty"`
	FanSpeedList []string         `json:"fan_speed_list,omitempty"`
	Battery      *int             `json:"battery,omitempty"`
	ErrorCode    string           `json:"error_code,omitempty"`
	Attributes   map[string]any   `json:"attributes,omitempty"`
	Version      uint64           `json:"version"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Vacuum is the vacuum entity for one device.
type Vacuum struct {
	id        string
	name      string
	model     *robovac.Model // nil for an unsupported model
	modelCode string
	fanSpeeds []string

	sub   *statecache.Subscription
	state atomic.Pointer[VacuumState]
}

// NewVacuum creates the entity for id. model may be nil when the device's
// model is not supported; modelCode is then shown as configured.
func NewVacuum(reg *statecache.Registry, id, name, modelCode string, model *robovac.Model) *Vacuum {
	v := &Vacuum{id: id, name: name, model: model, modelCode: modelCode}
	if model != nil {
		v.fanSpeeds = model.FriendlyFanSpeeds()
	}

	cache := reg.Acquire(id)
	v.update(cache.Get())
	v.sub = statecache.Watch(cache, v, (*Vacuum).update)
	return v
}

// UniqueID returns the entity id, which is the device id.
func (v *Vacuum) UniqueID() string {
	return v.id
}

// State returns the state computed from the latest cache entry.
func (v *Vacuum) State() VacuumState {
	return *v.state.Load()
}

// Close stops watching the cache.
func (v *Vacuum) Close() {
	v.sub.Unsubscribe()
}

func (v *Vacuum) update(e statecache.Entry) {
	s := v.present(e)
	v.state.Store(&s)
}

func (v *Vacuum) present(e statecache.Entry) VacuumState {
	snap := e.Snapshot
	st := VacuumState{
		UniqueID:     v.id,
		Name:         v.name,
		Model:        v.modelCode,
		Available:    e.Reachable && v.model != nil,
		Activity:     snap.Activity,
		FanSpeedList: v.fanSpeeds,
		Battery:      snap.Battery,
		Version:      e.Version,
		UpdatedAt:    e.LastUpdatedAt,
		Attributes:   map[string]any{},
	}
	if snap.Status != nil {
		st.Status = *snap.Status
	}
	if snap.FanSpeed != nil {
		st.FanSpeed = robovac.FriendlyText(*snap.FanSpeed)
	}

	code := ""
	if snap.ErrorCode != nil {
		code = *snap.ErrorCode
	}
	if !e.Reachable && (code == "" || code == robovac.NoError) && e.Version > 0 {
		code = robovac.FaultConnectionFailed
	}
	if code != "" && code != robovac.NoError {
		st.ErrorCode = code
		st.Attributes[AttrError] = robovac.FaultMessage(code)
	}

	if snap.Mode != nil {
		st.Attributes[AttrMode] = robovac.ModeName(*snap.Mode)
	}
	if v.model == nil {
		return st
	}

	if v.model.HasFeature(robovac.FeatureCleaningArea) && snap.CleaningArea != nil && *snap.CleaningArea != 0 {
		st.Attributes[AttrCleaningArea] = *snap.CleaningArea
	}
	if v.model.HasFeature(robovac.FeatureCleaningTime) && snap.CleaningTime != nil && *snap.CleaningTime != 0 {
		st.Attributes[AttrCleaningTime] = *snap.CleaningTime
	}
	if v.model.HasFeature(robovac.FeatureAutoReturn) && snap.AutoReturn != nil && *snap.AutoReturn {
		st.Attributes[AttrAutoReturn] = true
	}
	if v.model.HasFeature(robovac.FeatureDoNotDisturb) && snap.DoNotDisturb != nil && *snap.DoNotDisturb {
		st.Attributes[AttrDoNotDisturb] = true
	}
	if v.model.HasFeature(robovac.FeatureBoostIQ) && snap.BoostIQ != nil && *snap.BoostIQ {
		st.Attributes[AttrBoostIQ] = true
	}
	if v.model.HasFeature(robovac.FeatureConsumables) && snap.Consumables.Known && len(snap.Consumables.Remaining) > 0 {
		st.Attributes[AttrConsumables] = snap.Consumables.Remaining
	}
	return st
}
