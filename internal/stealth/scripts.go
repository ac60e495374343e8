package stealth

import (
	"fmt"
)

/*
Init-script bundle.

Every patch below runs as a browser init script, installed before any page
script executes. The bundle is pure string assembly: the browser package
delivers it through the driver's run-before-page-scripts hook.

Patch groups by mode:
- minimal: automation indicator, navigator surface, permissions coherence
- moderate adds: canvas/WebGL/audio fingerprint noise, WebRTC masking
- aggressive adds nothing script-side (network shaping is a CDP command)
*/

// Scripts assembles the injection bundle for one browsing context.
// seed drives the fingerprint perturbations: identical within a session,
// different across sessions.
func Scripts(profile DeviceProfile, mode Mode, seed uint32) []string {
	bundle := []string{
		automationScript(),
		navigatorScript(profile),
		permissionsScript(),
	}
	if mode.AtLeast(ModeModerate) {
		bundle = append(bundle,
			canvasScript(seed),
			webglScript(profile),
			audioScript(seed),
			webrtcScript(),
		)
	}
	return bundle
}

func automationScript() string {
	return `(() => {
  Object.defineProperty(Navigator.prototype, 'webdriver', {
    get: () => undefined,
    configurable: true,
  });
  delete navigator.__proto__.webdriver;
  if (window.chrome === undefined) {
    window.chrome = { runtime: {} };
  }
})();`
}

func navigatorScript(profile DeviceProfile) string {
	return fmt.Sprintf(`(() => {
  const locale = %q;
  Object.defineProperty(Navigator.prototype, 'languages', {
    get: () => [locale, 'en'],
    configurable: true,
  });
  Object.defineProperty(Navigator.prototype, 'platform', {
    get: () => %q,
    configurable: true,
  });
  Object.defineProperty(Navigator.prototype, 'hardwareConcurrency', {
    get: () => 8,
    configurable: true,
  });
  Object.defineProperty(Navigator.prototype, 'deviceMemory', {
    get: () => 8,
    configurable: true,
  });
  const pluginNames = ['PDF Viewer', 'Chrome PDF Viewer', 'Chromium PDF Viewer'];
  const fakePlugins = pluginNames.map((name) => ({
    name, filename: 'internal-pdf-viewer', description: 'Portable Document Format', length: 1,
  }));
  fakePlugins.item = (i) => fakePlugins[i] || null;
  fakePlugins.namedItem = (name) => fakePlugins.find((p) => p.name === name) || null;
  fakePlugins.refresh = () => {};
  Object.defineProperty(Navigator.prototype, 'plugins', {
    get: () => fakePlugins,
    configurable: true,
  });
})();`, profile.Locale, profile.Platform)
}

func permissionsScript() string {
	return `(() => {
  if (!navigator.permissions || !navigator.permissions.query) return;
  const originalQuery = navigator.permissions.query.bind(navigator.permissions);
  navigator.permissions.query = (descriptor) => {
    if (descriptor && descriptor.name === 'notifications') {
      return Promise.resolve({ state: Notification.permission, onchange: null });
    }
    return originalQuery(descriptor);
  };
})();`
}

// canvasScript perturbs canvas reads with a seeded PRNG so repeated reads in
// one session are byte-identical while two sessions diverge.
func canvasScript(seed uint32) string {
	return fmt.Sprintf(`(() => {
  const seed = %d;
  const mulberry32 = (a) => () => {
    a |= 0; a = (a + 0x6D2B79F5) | 0;
    let t = Math.imul(a ^ (a >>> 15), 1 | a);
    t = (t + Math.imul(t ^ (t >>> 7), 61 | t)) ^ t;
    return ((t ^ (t >>> 14)) >>> 0) / 4294967296;
  };
  const perturb = (data) => {
    const rand = mulberry32(seed);
    for (let i = 0; i < data.length; i += 4) {
      const delta = Math.floor(rand() * 3) - 1;
      data[i] = Math.max(0, Math.min(255, data[i] + delta));
    }
  };
  const origGetImageData = CanvasRenderingContext2D.prototype.getImageData;
  CanvasRenderingContext2D.prototype.getImageData = function (...args) {
    const imageData = origGetImageData.apply(this, args);
    perturb(imageData.data);
    return imageData;
  };
  const withNoise = (canvas, fn, args) => {
    const ctx = canvas.getContext('2d');
    if (ctx && canvas.width > 0 && canvas.height > 0) {
      const imageData = origGetImageData.call(ctx, 0, 0, canvas.width, canvas.height);
      perturb(imageData.data);
      ctx.putImageData(imageData, 0, 0);
    }
    return fn.apply(canvas, args);
  };
  const origToDataURL = HTMLCanvasElement.prototype.toDataURL;
  HTMLCanvasElement.prototype.toDataURL = function (...args) {
    return withNoise(this, origToDataURL, args);
  };
  const origToBlob = HTMLCanvasElement.prototype.toBlob;
  HTMLCanvasElement.prototype.toBlob = function (...args) {
    return withNoise(this, origToBlob, args);
  };
})();`, seed)
}

// webglScript pins the unmasked vendor/renderer constants to the device
// profile, for WebGL and WebGL2 contexts alike.
func webglScript(profile DeviceProfile) string {
	return fmt.Sprintf(`(() => {
  const VENDOR = %q;
  const RENDERER = %q;
  const patch = (proto) => {
    if (!proto) return;
    const orig = proto.getParameter;
    proto.getParameter = function (parameter) {
      if (parameter === 37445) return VENDOR;
      if (parameter === 37446) return RENDERER;
      return orig.call(this, parameter);
    };
  };
  patch(window.WebGLRenderingContext && WebGLRenderingContext.prototype);
  patch(window.WebGL2RenderingContext && WebGL2RenderingContext.prototype);
})();`, profile.WebGLVendor, profile.WebGLRenderer)
}

func audioScript(seed uint32) string {
	return fmt.Sprintf(`(() => {
  if (!window.AudioBuffer) return;
  const seed = %d;
  const orig = AudioBuffer.prototype.getChannelData;
  AudioBuffer.prototype.getChannelData = function (...args) {
    const data = orig.apply(this, args);
    let state = seed;
    for (let i = 0; i < data.length; i += 100) {
      state = (state * 1103515245 + 12345) >>> 0;
      data[i] += ((state / 4294967296) - 0.5) * 1e-7;
    }
    return data;
  };
})();`, seed)
}

// webrtcScript rewrites ICE candidate IPs to 0.0.0.0 and fills in a
// plausible device list when enumeration comes back empty.
func webrtcScript() string {
	return `(() => {
  if (window.RTCPeerConnection) {
    const scrub = (candidate) => {
      if (!candidate || !candidate.candidate) return candidate;
      return new RTCIceCandidate({
        candidate: candidate.candidate.replace(/(\d{1,3}\.){3}\d{1,3}/g, '0.0.0.0'),
        sdpMid: candidate.sdpMid,
        sdpMLineIndex: candidate.sdpMLineIndex,
      });
    };
    const OrigPC = window.RTCPeerConnection;
    window.RTCPeerConnection = function (...args) {
      const pc = new OrigPC(...args);
      const origAdd = pc.addEventListener.bind(pc);
      pc.addEventListener = (type, listener, ...rest) => {
        if (type === 'icecandidate' && typeof listener === 'function') {
          return origAdd(type, (ev) => {
            listener(Object.assign({}, ev, { candidate: scrub(ev.candidate) }));
          }, ...rest);
        }
        return origAdd(type, listener, ...rest);
      };
      return pc;
    };
    window.RTCPeerConnection.prototype = OrigPC.prototype;
  }
  if (navigator.mediaDevices && navigator.mediaDevices.enumerateDevices) {
    const origEnumerate = navigator.mediaDevices.enumerateDevices.bind(navigator.mediaDevices);
    navigator.mediaDevices.enumerateDevices = async () => {
      const devices = await origEnumerate();
      if (devices.length > 0) return devices;
      return [
        { deviceId: 'default', kind: 'audioinput', label: '', groupId: 'default-group' },
        { deviceId: 'default', kind: 'audiooutput', label: '', groupId: 'default-group' },
        { deviceId: 'default', kind: 'videoinput', label: '', groupId: 'default-group' },
      ];
    };
  }
})();`
}
