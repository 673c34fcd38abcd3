package panelsim

import (
	"github.com/spanpanel/span-go/pkg/panel"
)

// JSON bodies served by the API. Field names follow the camelCase the
// real panel firmware speaks.

type errorResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	Software struct {
		FirmwareVersion string `json:"firmwareVersion"`
		UpdateStatus    string `json:"updateStatus"`
		Env             string `json:"env"`
	} `json:"software"`
	System struct {
		Manufacturer                     string `json:"manufacturer"`
		Serial                           string `json:"serial"`
		Model                            string `json:"model"`
		DoorState                        string `json:"doorState"`
		ProximityProven                  *bool  `json:"proximityProven,omitempty"`
		RemainingAuthUnlockButtonPresses *int   `json:"remainingAuthUnlockButtonPresses,omitempty"`
		UptimeMs                         int64  `json:"uptime"`
	} `json:"system"`
	Network struct {
		Eth0Link bool `json:"eth0Link"`
		WlanLink bool `json:"wlanLink"`
		WwanLink bool `json:"wwanLink"`
	} `json:"network"`
}

func statusResponseFrom(st *panel.Status) statusResponse {
	var resp statusResponse
	resp.Software.FirmwareVersion = st.FirmwareVersion
	resp.Software.UpdateStatus = st.UpdateStatus
	resp.Software.Env = "prod"
	resp.System.Manufacturer = st.Manufacturer
	resp.System.Serial = st.SerialNumber
	resp.System.Model = st.Model
	resp.System.DoorState = string(st.DoorState)
	resp.System.ProximityProven = st.ProximityProven
	resp.System.RemainingAuthUnlockButtonPresses = st.RemainingAuthUnlockButtonPresses
	resp.System.UptimeMs = st.UptimeMs
	resp.Network.Eth0Link = st.EthernetLink
	resp.Network.WlanLink = st.WifiLink
	resp.Network.WwanLink = st.CellularLink
	return resp
}

type registerRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType,omitempty"`
	IATms       int64  `json:"iatMs,omitempty"`
}

type circuitResponse struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	RelayState         string  `json:"relayState"`
	Priority           string  `json:"priority"`
	InstantPowerW      float64 `json:"instantPowerW"`
	ProducedEnergyWh   float64 `json:"producedEnergyWh"`
	ConsumedEnergyWh   float64 `json:"consumedEnergyWh"`
	Tabs               []int   `json:"tabs"`
	IsUserControllable bool    `json:"isUserControllable"`
	IsSheddable        bool    `json:"isSheddable"`
	IsNeverBackup      bool    `json:"isNeverBackup"`
}

func circuitResponseFrom(c panel.Circuit) circuitResponse {
	return circuitResponse{
		ID:                 c.ID,
		Name:               c.Name,
		RelayState:         string(c.RelayState),
		Priority:           string(c.Priority),
		InstantPowerW:      c.InstantPowerW,
		ProducedEnergyWh:   c.ProducedEnergyWh,
		ConsumedEnergyWh:   c.ConsumedEnergyWh,
		Tabs:               c.Tabs,
		IsUserControllable: c.IsUserControllable,
		IsSheddable:        c.IsSheddable,
		IsNeverBackup:      c.IsNeverBackup,
	}
}

type circuitsResponse struct {
	Circuits map[string]circuitResponse `json:"circuits"`
}

type relayRequest struct {
	RelayStateIn struct {
		RelayState string `json:"relayState"`
	} `json:"relayStateIn"`
}

type panelResponse struct {
	MainRelayState    string            `json:"mainRelayState"`
	InstantGridPowerW float64           `json:"instantGridPowerW"`
	FeedthroughPowerW float64           `json:"feedthroughPowerW"`
	CurrentRunConfig  string            `json:"currentRunConfig"`
	DSMGridState      string            `json:"dsmGridState"`
	DSMState          string            `json:"dsmState"`
	MainMeterEnergy   panel.EnergyAccum `json:"mainMeterEnergy"`
	FeedthroughEnergy panel.EnergyAccum `json:"feedthroughEnergy"`
}

func panelResponseFrom(pd *panel.PanelData) panelResponse {
	return panelResponse{
		MainRelayState:    string(pd.MainRelayState),
		InstantGridPowerW: pd.InstantGridPowerW,
		FeedthroughPowerW: pd.FeedthroughPowerW,
		CurrentRunConfig:  pd.CurrentRunConfig,
		DSMGridState:      pd.DSMGridState,
		DSMState:          pd.DSMState,
		MainMeterEnergy:   pd.MainMeterEnergy,
		FeedthroughEnergy: pd.FeedthroughEnergy,
	}
}

type batteryResponse struct {
	SOE struct {
		Percentage float64 `json:"percentage"`
	} `json:"soe"`
}
