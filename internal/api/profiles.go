package api

import "github.com/crosssave/agent/internal/profile"

// ListProfiles implements spec §6 list_profiles: every known profile, user
// overrides merged over builtins.
func (a *API) ListProfiles() ([]profile.Profile, error) {
	return a.d.Profiles.List()
}

// GetProfile implements spec §6 get_profile(id).
func (a *API) GetProfile(emulatorID string) (*profile.Profile, error) {
	return a.d.Profiles.Get(emulatorID)
}

// SaveProfile implements spec §6 save_profile(p).
func (a *API) SaveProfile(p profile.Profile) error {
	return a.d.Profiles.Save(p)
}

// DeleteProfile implements spec §6 delete_profile(id).
func (a *API) DeleteProfile(emulatorID string) error {
	return a.d.Profiles.Delete(emulatorID)
}
