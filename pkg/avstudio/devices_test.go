package avstudio

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

// deviceStore is the fake platform's device inventory
type deviceStore struct {
	mu      sync.Mutex
	order   []string
	devices map[string]map[string]interface{}
	failOn  map[string]bool
}

func newDeviceStore(devices ...map[string]interface{}) *deviceStore {
	s := &deviceStore{devices: map[string]map[string]interface{}{}, failOn: map[string]bool{}}
	for _, d := range devices {
		id := d["Id"].(string)
		s.order = append(s.order, id)
		s.devices[id] = d
	}

	return s
}

// routes registers the device endpoints below prefix
func (s *deviceStore) routes(r *mux.Router, prefix string) {
	r.HandleFunc(prefix+"/devices/batch_task", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"Status": "queued"})
	}).Methods(http.MethodPost)

	r.HandleFunc(prefix+"/devices", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		list := make([]map[string]interface{}, 0, len(s.order))
		for _, id := range s.order {
			list = append(list, s.devices[id])
		}
		writeJSON(w, http.StatusOK, list)
	}).Methods(http.MethodGet)

	r.HandleFunc(prefix+"/devices", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			DeviceID string
			Name     string
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		d := map[string]interface{}{"Id": req.DeviceID, "DeviceID": req.DeviceID, "Name": req.Name}
		s.order = append(s.order, req.DeviceID)
		s.devices[req.DeviceID] = d
		writeJSON(w, http.StatusOK, d)
	}).Methods(http.MethodPost)

	r.HandleFunc(prefix+"/devices/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		s.mu.Lock()
		defer s.mu.Unlock()

		d, ok := s.devices[id]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown device"})
			return
		}

		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, d)
		case http.MethodPut:
			var nd map[string]interface{}
			json.NewDecoder(r.Body).Decode(&nd)
			s.devices[id] = nd
			writeJSON(w, http.StatusOK, nd)
		case http.MethodDelete:
			if s.failOn[id] {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cannot delete"})
				return
			}
			delete(s.devices, id)
			for i, o := range s.order {
				if o == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
			writeJSON(w, http.StatusOK, map[string]string{"Deleted": id})
		}
	}).Methods(http.MethodGet, http.MethodPut, http.MethodDelete)

	r.HandleFunc(prefix+"/devices/{id}/unpair", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"Unpaired": mux.Vars(r)["id"]})
	}).Methods(http.MethodPost)

	echoQuery := func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, r.URL.Query())
	}
	r.HandleFunc(prefix+"/devices/{id}/thumbnails", echoQuery).Methods(http.MethodGet)
	r.HandleFunc(prefix+"/media/waveform/{id}", echoQuery).Methods(http.MethodGet)
}

func devicePaths(reqs []recordedRequest) []string {
	var out []string
	for _, r := range reqs {
		out = append(out, r.Path)
	}

	return out
}

func TestDevices_GetAllAndGet(t *testing.T) {
	f := newFakePlatform(t)
	api := newTokenAPI(t, f)
	newDeviceStore(
		map[string]interface{}{"Id": "d1", "Name": "Studio A"},
		map[string]interface{}{"Id": "d2", "Name": "Studio B"},
	).routes(f.router, "/front/api/v2")

	devices, err := api.Devices.GetAll()
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("got %d devices, want 2", len(devices))
	}
	if devices[1].ID() != "d2" || devices[1].Name() != "Studio B" {
		t.Errorf("devices[1] = %v", devices[1])
	}

	d, err := api.Devices.Get("d1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d.Name() != "Studio A" {
		t.Errorf("Name() = %q", d.Name())
	}

	_, err = api.Devices.Get("nope")
	if code, _ := StatusCode(err); code != http.StatusNotFound {
		t.Errorf("expected a 404, got %v", err)
	}

	if _, err := api.Devices.Get(""); err != ErrEmptyDeviceID {
		t.Errorf("expected ErrEmptyDeviceID, got %v", err)
	}
}

func TestDevices_AddThenGet(t *testing.T) {
	f := newFakePlatform(t)
	api := newTokenAPI(t, f)
	newDeviceStore().routes(f.router, "/front/api/v2")

	if _, err := api.Devices.Add("enc-17", "Lobby encoder"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	posts := f.recordedMethod(http.MethodPost)
	if len(posts) != 1 {
		t.Fatalf("got %d POSTs", len(posts))
	}
	if got, want := string(bytes.TrimSpace(posts[0].Body)), `{"DeviceID":"enc-17","Name":"Lobby encoder"}`; got != want {
		t.Errorf("add body = %s, want %s", got, want)
	}

	d, err := api.Devices.Get("enc-17")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d.ID() != "enc-17" || stringField(d, "DeviceID") != "enc-17" || d.Name() != "Lobby encoder" {
		t.Errorf("device = %v", d)
	}
}

func TestDevices_SetName(t *testing.T) {
	f := newFakePlatform(t)
	api := newTokenAPI(t, f)
	newDeviceStore(map[string]interface{}{
		"Id":       "d1",
		"Name":     "old",
		"Serial":   "SN-9",
		"Counter":  int64(9007199254740993),
		"Settings": map[string]interface{}{"bitrate": 4500, "tags": []string{"a", "b"}},
	}).routes(f.router, "/front/api/v2")

	if _, err := api.Devices.SetName("d1", "new"); err != nil {
		t.Fatalf("SetName: %v", err)
	}

	puts := f.recordedMethod(http.MethodPut)
	if len(puts) != 1 {
		t.Fatalf("got %d PUTs", len(puts))
	}
	if puts[0].Path != "/front/api/v2/devices/d1" {
		t.Errorf("PUT path = %q", puts[0].Path)
	}

	var got, want map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(puts[0].Body))
	dec.UseNumber()
	if err := dec.Decode(&got); err != nil {
		t.Fatal(err)
	}
	dec = json.NewDecoder(bytes.NewReader([]byte(`{"Id":"d1","Name":"new","Serial":"SN-9","Counter":9007199254740993,"Settings":{"bitrate":4500,"tags":["a","b"]}}`)))
	dec.UseNumber()
	if err := dec.Decode(&want); err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("PUT body = %v, want %v", got, want)
	}
}

func TestDevices_DeleteAll(t *testing.T) {
	mkStore := func() *deviceStore {
		return newDeviceStore(
			map[string]interface{}{"Id": "d1"},
			map[string]interface{}{"Id": "d2"},
			map[string]interface{}{"Id": "d3"},
			map[string]interface{}{"Id": "d4"},
		)
	}

	t.Run("all deleted in order", func(t *testing.T) {
		f := newFakePlatform(t)
		api := newTokenAPI(t, f)
		mkStore().routes(f.router, "/front/api/v2")

		if err := api.Devices.DeleteAll(); err != nil {
			t.Fatalf("DeleteAll: %v", err)
		}

		want := []string{
			"/front/api/v2/devices/d1",
			"/front/api/v2/devices/d2",
			"/front/api/v2/devices/d3",
			"/front/api/v2/devices/d4",
		}
		if got := devicePaths(f.recordedMethod(http.MethodDelete)); !reflect.DeepEqual(got, want) {
			t.Errorf("deletes = %v, want %v", got, want)
		}
	})

	t.Run("stops at the first failure", func(t *testing.T) {
		f := newFakePlatform(t)
		api := newTokenAPI(t, f)
		store := mkStore()
		store.failOn["d2"] = true
		store.routes(f.router, "/front/api/v2")

		err := api.Devices.DeleteAll()
		if !IsUnavailable(err) {
			t.Fatalf("expected the 500 from the second delete, got %v", err)
		}
		if _, ok := err.(*HTTPError); !ok {
			t.Errorf("error should be returned unwrapped, got %T", err)
		}

		deletes := f.recordedMethod(http.MethodDelete)
		if len(deletes) != 2 {
			t.Errorf("got %d delete attempts, want 2", len(deletes))
		}

		left, err := api.Devices.GetAll()
		if err != nil {
			t.Fatal(err)
		}
		if len(left) != 3 {
			t.Errorf("got %d devices left, want 3", len(left))
		}
	})
}

func TestDevices_DeleteAllListingWithoutID(t *testing.T) {
	f := newFakePlatform(t)
	api := newTokenAPI(t, f)

	f.router.HandleFunc("/front/api/v2/devices", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]string{
			{"Id": "d1", "Name": "ok"},
			{"DeviceID": "x1", "Name": "no id"},
			{"Id": "d3", "Name": "ok"},
		})
	}).Methods(http.MethodGet)
	f.router.HandleFunc("/front/api/v2/devices/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{})
	}).Methods(http.MethodDelete)

	err := api.Devices.DeleteAll()
	if err == nil || !strings.Contains(err.Error(), "device without Id") {
		t.Fatalf("expected a missing Id error, got %v", err)
	}

	want := []string{"/front/api/v2/devices/d1"}
	if got := devicePaths(f.recordedMethod(http.MethodDelete)); !reflect.DeepEqual(got, want) {
		t.Errorf("deletes = %v, want %v", got, want)
	}
}

func TestCollection_EmptyID(t *testing.T) {
	f := newFakePlatform(t)
	api := NewAPI(f.host(), f.options()...)

	if _, err := api.Scenes.Get(""); err == nil {
		t.Error("Get with an empty id should fail")
	}
	if _, err := api.Scenes.Delete(""); err == nil {
		t.Error("Delete with an empty id should fail")
	}
	if reqs := f.recorded(); len(reqs) != 0 {
		t.Errorf("no request should be sent, got %d", len(reqs))
	}
}

func TestDevices_Commands(t *testing.T) {
	f := newFakePlatform(t)
	api := newTokenAPI(t, f)
	newDeviceStore(map[string]interface{}{"Id": "d1"}).routes(f.router, "/front/api/v2")

	res, err := api.Devices.RunCommand("d1", "reboot")
	if err != nil {
		t.Fatalf("RunCommand: %v", err)
	}
	if !bytes.Contains(res, []byte("queued")) {
		t.Errorf("RunCommand result = %s", res)
	}

	posts := f.recordedMethod(http.MethodPost)
	if posts[0].Path != "/front/api/v2/devices/batch_task" {
		t.Errorf("path = %q", posts[0].Path)
	}
	if got, want := string(bytes.TrimSpace(posts[0].Body)), `{"Devices":["d1"],"Task":{"cmd":"reboot"}}`; got != want {
		t.Errorf("body = %s, want %s", got, want)
	}
	if ct := posts[0].Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	if _, err := api.Devices.Unpair("d1"); err != nil {
		t.Fatalf("Unpair: %v", err)
	}
	posts = f.recordedMethod(http.MethodPost)
	if last := posts[len(posts)-1]; last.Path != "/front/api/v2/devices/d1/unpair" || len(last.Body) != 0 {
		t.Errorf("unpair request = %s %q", last.Path, last.Body)
	}
}

func TestDevices_MediaQueries(t *testing.T) {
	f := newFakePlatform(t)
	api := newTokenAPI(t, f)
	newDeviceStore(map[string]interface{}{"Id": "d1"}).routes(f.router, "/front/api/v2")

	tests := []struct {
		name  string
		call  func() (json.RawMessage, error)
		path  string
		query url.Values
		raw   string
	}{
		{
			"timeline",
			func() (json.RawMessage, error) { return api.Devices.GetTimeline("d1", "100", "200") },
			"/front/api/v2/devices/d1/thumbnails",
			url.Values{"from": {"100"}, "to": {"200"}},
			"from=100&to=200",
		},
		{
			"waveform",
			func() (json.RawMessage, error) { return api.Devices.GetWaveform("d1", "100", "200") },
			"/front/api/v2/media/waveform/d1",
			url.Values{"from": {"100"}, "to": {"200"}, "timeOffset": {"0"}},
			"from=100&to=200&timeOffset=0",
		},
		{
			"thumbnail",
			func() (json.RawMessage, error) { return api.Devices.GetThumbnail("d1", "100", "200") },
			"/front/api/v2/devices/d1/thumbnails",
			url.Values{"from": {"100"}, "timeOffset": {"0"}, "to": {"200"}},
			"from=100&timeOffset=0&to=200",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.call()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var echoed url.Values
			if err := json.Unmarshal(res, &echoed); err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(echoed, tt.query) {
				t.Errorf("query = %v, want %v", echoed, tt.query)
			}

			reqs := f.recorded()
			last := reqs[len(reqs)-1]
			if last.Path != tt.path {
				t.Errorf("path = %q, want %q", last.Path, tt.path)
			}
			if last.Query != tt.raw {
				t.Errorf("raw query = %q, want %q", last.Query, tt.raw)
			}
		})
	}
}

func TestDevices_GetStateImage(t *testing.T) {
	f := newFakePlatform(t)
	api := newTokenAPI(t, f)

	image := bytes.Repeat([]byte{0xff, 0xd8, 0x00, 0x42}, 1000)
	f.router.HandleFunc("/front/api/v2/devices/{id}/state.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		flusher := w.(http.Flusher)
		for off := 0; off < len(image); off += 700 {
			end := off + 700
			if end > len(image) {
				end = len(image)
			}
			w.Write(image[off:end])
			flusher.Flush()
		}
	}).Methods(http.MethodGet)
	f.router.HandleFunc("/front/api/v2/devices/{id}/missing.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	dir, err := ioutil.TempDir("", "avstudio")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	local := filepath.Join(dir, "state.jpg")
	resp, err := api.Devices.GetStateImage("d1", local)
	if err != nil {
		t.Fatalf("GetStateImage: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}

	got, err := ioutil.ReadFile(local)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, image) {
		t.Errorf("downloaded %d bytes, want %d identical bytes", len(got), len(image))
	}

	if reqs := f.recorded(); reqs[len(reqs)-1].Header.Get("Authorization") != "Bearer token-1" {
		t.Error("download should carry the token")
	}

	other := filepath.Join(dir, "missing.jpg")
	if _, err := api.HTTP.DownloadFile("devices/d1/missing.jpg", other); err == nil {
		t.Fatal("expected a 404 error")
	}
	if _, err := os.Stat(other); !os.IsNotExist(err) {
		t.Error("no file should be created for a failed download")
	}
}

func TestAccess_PostFile(t *testing.T) {
	f := newFakePlatform(t)
	api := newTokenAPI(t, f)

	f.router.HandleFunc("/front/api/v2/media/upload", func(w http.ResponseWriter, r *http.Request) {
		file, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()

		data, _ := ioutil.ReadAll(file)
		writeJSON(w, http.StatusOK, map[string]string{
			"name": hdr.Filename,
			"type": hdr.Header.Get("Content-Type"),
			"data": string(data),
		})
	}).Methods(http.MethodPost)

	dir, err := ioutil.TempDir("", "avstudio")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	local := filepath.Join(dir, "slate.png")
	if err := ioutil.WriteFile(local, []byte("PNGDATA"), 0644); err != nil {
		t.Fatal(err)
	}

	resp, err := api.HTTP.PostFile("media/upload", local, "image/png")
	if err != nil {
		t.Fatalf("PostFile: %v", err)
	}

	var got map[string]string
	if err := resp.DecodeJSON(&got); err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"name": "slate.png", "type": "image/png", "data": "PNGDATA"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("upload = %v, want %v", got, want)
	}

	if _, err := api.HTTP.PostFile("media/upload", filepath.Join(dir, "nope.png"), ""); !os.IsNotExist(errors.Cause(err)) {
		t.Errorf("expected a not-exist error, got %v", err)
	}
}

func TestDevices_TeamScoped(t *testing.T) {
	f := newFakePlatform(t)
	loginRoutes(f)
	newDeviceStore(map[string]interface{}{"Id": "d1", "Name": "A"}).routes(f.router, "/front/api/v1t/team/TEAM42")

	api := NewAPI(f.host(), f.options()...)
	if err := api.Login("ada", "s3cret&pw", ""); err != nil {
		t.Fatalf("Login: %v", err)
	}

	devices, err := api.Devices.GetAll()
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(devices) != 1 || devices[0].ID() != "d1" {
		t.Errorf("devices = %v", devices)
	}

	reqs := f.recorded()
	last := reqs[len(reqs)-1]
	if last.Path != "/front/api/v1t/team/TEAM42/devices" {
		t.Errorf("path = %q", last.Path)
	}
}
